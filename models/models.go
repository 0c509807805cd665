package models

import (
	"errors"
	"fmt"
	"strings"
)

var ErrBadRequest = errors.New("bad request")
var ErrUnauthorized = errors.New("unauthorized")
var ErrServerError = errors.New("server error")
var ErrNotFoundError = errors.New("not found")

var ErrConfigNotFound = errors.New("Bundle Template not found")
var ErrUpstreamUnavailable = errors.New("upstream unavailable")
var ErrMalformedUpstream = errors.New("malformed upstream response")
var ErrMissingCredentials = errors.New("Missing Airtable credentials")

// ErrValidationFailed is only returned when committing a bundle; plain
// validation reports failures as a value.
var ErrValidationFailed = errors.New("bundle selection is not valid")

// UpstreamStatusError is a non-2xx reply from Airtable or Squarespace.
type UpstreamStatusError struct {
	Status int
	Body   string
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Body)
}

func (e *UpstreamStatusError) Unwrap() error {
	return ErrUpstreamUnavailable
}

// ValidationError carries the validator messages for a rejected commit.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return ErrValidationFailed.Error() + ": " + strings.Join(e.Messages, " ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// Airtable wire types.

type AirtableRecord struct {
	Id          string         `json:"id"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

type AirtableList struct {
	Records []AirtableRecord `json:"records"`
	Offset  string           `json:"offset,omitempty"`
}

type AirtableAttachment struct {
	Id       string `json:"id"`
	Url      string `json:"url"`
	Filename string `json:"filename"`
}

// Request bodies accepted by the HTTP layer.

type ZipRequest struct {
	Zip string `json:"zip"`
}

type QuantityRequest struct {
	Quantity *float64 `json:"quantity"`
}

type SelectionRequest struct {
	Main   []string `json:"main"`
	Accent []string `json:"accent"`
	Latex  []string `json:"latex"`
	Weight []string `json:"weight"`
}

type ValidateBundleRequest struct {
	TemplateNK string           `json:"templateNK"`
	Selection  SelectionRequest `json:"selection"`
}

type CommitBundleRequest struct {
	TemplateNK      string           `json:"templateNK"`
	Selection       SelectionRequest `json:"selection"`
	EditingBundleId string           `json:"editingBundleId,omitempty"`
	Notes           string           `json:"notes,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
