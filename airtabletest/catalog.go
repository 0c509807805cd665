package airtabletest

// SeedCatalog loads a small catalog: the CLASSIC template (3 to 5 main, 2
// accent, 1 weight), one product per slot plus an extra main and accent, a
// product with an unknown category and an image record served over http.
func (s *Server) SeedCatalog() {
	s.Add("Bundle Templates",
		Record("recTplClassic", map[string]any{
			"Bundle Template NK":   "CLASSIC",
			"Name":                 "Classic Bundle",
			"Price":                85,
			"Main Balloon Min":     3,
			"Main Balloon Max":     5,
			"Accent Balloon Count": 2,
			"Weight Count":         1,
			"Allow Numbers":        false,
			"Mixed Allowed":        true,
		}),
		Record("recTplMini", map[string]any{
			"Bundle Template NK": "MINI",
			"Name":               "Mini Bundle",
			"Price":              40,
			"Main Balloon Min":   1,
		}),
	)

	s.Add("Product",
		Record("recM1", map[string]any{
			"Bundle Eligible": true, "Bundle Category": "Main",
			"Product Name": "Gold Star", "BX SKU": "BX-M1", "SQ Variant ID": "var-m1",
			"Product Images": []any{"recImg1"}, "Retail Price": 12,
		}),
		Record("recM2", map[string]any{
			"Bundle Eligible": true, "Bundle Category": "Main",
			"Product Name": "Silver Moon", "BX SKU": "BX-M2", "SQ Variant ID": "var-m2",
		}),
		Record("recM3", map[string]any{
			"Bundle Eligible": true, "Bundle Category": "Main",
			"Product Name": "Rose Heart", "SQ Variant ID": "var-m3",
		}),
		Record("recA1", map[string]any{
			"Bundle Eligible": true, "Bundle Category": "Accent",
			"Product Name": "Blush Orb", "SQ Variant ID": "var-a1",
		}),
		Record("recA2", map[string]any{
			"Bundle Eligible": true, "Bundle Category": "Accent",
			"Product Name": "Chrome Orb", "SQ Variant ID": "var-a2",
		}),
		Record("recW1", map[string]any{
			"Bundle Eligible": true, "Bundle Category": "Weight",
			"Product Name": "Tassel Weight", "SQ Variant ID": "var-w1",
		}),
		Record("recW2", map[string]any{
			"Bundle Eligible": true, "Bundle Category": "Weight",
			"Product Name": "Box Weight",
		}),
		Record("recX1", map[string]any{
			"Bundle Eligible": true, "Bundle Category": "Numbers",
			"Product Name": "Number 7",
		}),
		Record("recN1", map[string]any{
			"Bundle Eligible": false, "Bundle Category": "Main",
			"Product Name": "Helium Tank", "Retail Price": 60,
		}),
	)

	s.Add("Product Images",
		Record("recImg1", map[string]any{
			"Image (Attachment)": []any{
				map[string]any{"id": "att1", "url": "http://dl.airtable.com/gold-star.png", "filename": "gold-star.png"},
			},
		}),
	)
}
