// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package overdrive

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/circulation/internal/httpclient"
	"github.com/tomtom215/circulation/internal/validation"
)

// decode unmarshals and validates a vendor document. Any failure becomes a
// *ValidationError carrying the offending body.
func decode[T any](resp *httpclient.Response) (*T, error) {
	var v T
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		return nil, newValidationError(resp, err)
	}
	if err := validation.Struct(&v); err != nil {
		return nil, newValidationError(resp, err)
	}
	return &v, nil
}

// ErrorResponse is Overdrive's error document. The OAuth endpoints use
// error/error_description, everything else errorCode/message.
type ErrorResponse struct {
	ErrorCode        string `json:"errorCode"`
	OAuthError       string `json:"error"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
	Token            string `json:"token"`
}

// Code returns the error code in either spelling.
func (e *ErrorResponse) Code() string {
	if e.ErrorCode != "" {
		return e.ErrorCode
	}
	return e.OAuthError
}

// Text returns the message in either spelling.
func (e *ErrorResponse) Text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.ErrorDescription
}

// parseErrorResponse returns nil when body is not an error document.
func parseErrorResponse(body []byte) *ErrorResponse {
	var e ErrorResponse
	if len(body) == 0 || json.Unmarshal(body, &e) != nil || e.Code() == "" {
		return nil
	}
	return &e
}

type tokenResponse struct {
	AccessToken string  `json:"access_token" validate:"required"`
	ExpiresIn   float64 `json:"expires_in" validate:"gt=0"`
	TokenType   string  `json:"token_type"`
}

// expiry applies the safety margin to the advertised lifetime.
func (t *tokenResponse) expiry(now time.Time) time.Time {
	return now.Add(time.Duration(t.ExpiresIn * tokenExpiryFactor * float64(time.Second)))
}

// Link is a plain hypermedia link.
type Link struct {
	Href string `json:"href" validate:"required"`
	Type string `json:"type"`
}

var substitutionPattern = regexp.MustCompile(`\{(\w+?)\}`)

// LinkTemplate is a link with {name} substitution slots.
type LinkTemplate struct {
	Href string `json:"href" validate:"required"`
	Type string `json:"type"`
}

// Substitutions returns the slot names in href, sorted.
func (l LinkTemplate) Substitutions() []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range substitutionPattern.FindAllStringSubmatch(l.Href, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	sort.Strings(out)
	return out
}

// Template fills every slot with the query-escaped value from values. All
// slots must be supplied.
func (l LinkTemplate) Template(values map[string]string) (string, error) {
	href := l.Href
	var missing []string
	for _, name := range l.Substitutions() {
		v, ok := values[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		href = strings.ReplaceAll(href, "{"+name+"}", url.QueryEscape(v))
	}
	if len(missing) > 0 {
		return "", &ModelError{Message: "Missing substitutions: " + strings.Join(missing, ", ")}
	}
	return href, nil
}

// formField is one name/value pair of a vendor form submission.
type formField struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// encodeForm renders fields in the {"fields": [...]} shape Overdrive
// expects. No fields means no body.
func encodeForm(fields []formField) ([]byte, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	return json.Marshal(struct {
		Fields []formField `json:"fields"`
	}{fields})
}

// ActionField is one input of an Action form.
type ActionField struct {
	Name     string   `json:"name" validate:"required"`
	Value    string   `json:"value"`
	Options  []string `json:"options"`
	Optional bool     `json:"optional"`
}

func (f ActionField) allows(v string) bool {
	if len(f.Options) == 0 {
		return true
	}
	for _, o := range f.Options {
		if o == v {
			return true
		}
	}
	return false
}

// Action is a vendor-described operation on a checkout or hold.
type Action struct {
	Href   string        `json:"href" validate:"required"`
	Method string        `json:"method" validate:"required"`
	Type   string        `json:"type"`
	Fields []ActionField `json:"fields" validate:"dive"`
}

// Field returns the named field or nil.
func (a *Action) Field(name string) *ActionField {
	for i := range a.Fields {
		if a.Fields[i].Name == name {
			return &a.Fields[i]
		}
	}
	return nil
}

// Form builds the request fields for the action. Values override field
// defaults; a required field without a value, a value outside a field's
// options, or a value for an unknown field is an error.
func (a *Action) Form(values map[string]string) ([]formField, error) {
	remaining := make(map[string]string, len(values))
	for k, v := range values {
		remaining[k] = v
	}

	fields := make([]formField, 0, len(a.Fields))
	for _, f := range a.Fields {
		v, ok := remaining[f.Name]
		delete(remaining, f.Name)
		switch {
		case ok:
		case f.Value != "":
			v = f.Value
		case f.Optional:
			continue
		default:
			return nil, &ModelError{Message: "Missing required field: " + f.Name}
		}
		if !f.allows(v) {
			return nil, &InvalidFieldOptionError{Field: f.Name, Value: v, Options: f.Options}
		}
		fields = append(fields, formField{Name: f.Name, Value: v})
	}
	if len(remaining) > 0 {
		names := make([]string, 0, len(remaining))
		for k := range remaining {
			names = append(names, k)
		}
		sort.Strings(names)
		return nil, &ModelError{Message: "Extra fields: " + strings.Join(names, ", ")}
	}
	return fields, nil
}

// Format is one delivery format of a checkout.
type Format struct {
	FormatType    string                  `json:"formatType" validate:"required,formatname"`
	Links         map[string]Link         `json:"links"`
	LinkTemplates map[string]LinkTemplate `json:"linkTemplates"`
}

// TemplateLink fills the named link template.
func (f *Format) TemplateLink(name string, values map[string]string) (string, error) {
	tpl, ok := f.LinkTemplates[name]
	if !ok {
		return "", notFound(name, "link template", keys(f.LinkTemplates))
	}
	return tpl.Template(values)
}

// Checkout is one loan as the patron API reports it.
type Checkout struct {
	ReserveID    string            `json:"reserveId" validate:"required"`
	CrossRefID   int64             `json:"crossRefId"`
	Expires      *time.Time        `json:"expires"`
	LockedIn     bool              `json:"isFormatLockedIn"`
	CheckoutDate *time.Time        `json:"checkoutDate"`
	Actions      map[string]Action `json:"actions" validate:"dive"`
	Formats      []Format          `json:"formats" validate:"dive"`
}

// GetFormat returns the format for an internal format name, mapping
// manifest variants onto the vendor format they are delivered through.
func (c *Checkout) GetFormat(formatType string) *Format {
	if public, ok := manifestFormats[formatType]; ok {
		formatType = public
	}
	for i := range c.Formats {
		if c.Formats[i].FormatType == formatType {
			return &c.Formats[i]
		}
	}
	return nil
}

// AvailableFormats returns every format the loan can be delivered in:
// the listed formats, their manifest variants, and the lock-in options of
// the format action.
func (c *Checkout) AvailableFormats() map[string]bool {
	out := make(map[string]bool)
	for _, f := range c.Formats {
		out[f.FormatType] = true
	}
	for internal, public := range manifestFormats {
		if out[public] {
			out[internal] = true
		}
	}
	if action, ok := c.Actions["format"]; ok {
		if field := action.Field("formatType"); field != nil {
			for _, o := range field.Options {
				out[o] = true
			}
		}
	}
	return out
}

// Action returns the named action.
func (c *Checkout) Action(name string) (*Action, error) {
	a, ok := c.Actions[name]
	if !ok {
		return nil, notFound(name, "action", keys(c.Actions))
	}
	return &a, nil
}

// downloadResponse answers a templated download link.
type downloadResponse struct {
	Links map[string]Link `json:"links" validate:"dive"`
}

type checkoutsResponse struct {
	TotalItems int        `json:"totalItems"`
	Checkouts  []Checkout `json:"checkouts" validate:"dive"`
}

// Hold is one hold as the patron API reports it.
type Hold struct {
	ReserveID        string            `json:"reserveId" validate:"required"`
	EmailAddress     string            `json:"emailAddress"`
	HoldListPosition *int              `json:"holdListPosition" validate:"omitempty,gte=0"`
	NumberOfHolds    *int              `json:"numberOfHolds" validate:"omitempty,gte=0"`
	HoldPlacedDate   *time.Time        `json:"holdPlacedDate"`
	HoldExpires      *time.Time        `json:"holdExpires"`
	Actions          map[string]Action `json:"actions" validate:"dive"`
}

type holdsResponse struct {
	TotalItems int    `json:"totalItems"`
	Holds      []Hold `json:"holds" validate:"dive"`
}

type patronInformation struct {
	PatronID      int64  `json:"patronId"`
	LastHoldEmail string `json:"lastHoldEmail"`
}

type libraryResponse struct {
	CollectionToken string `json:"collectionToken"`
	Links           struct {
		AdvantageAccounts *Link `json:"advantageAccounts"`
	} `json:"links"`
	ErrorResponse
}

// AdvantageAccount is a child account of an Overdrive library.
type AdvantageAccount struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	CollectionToken string `json:"collectionToken" validate:"required"`
}

type advantageAccountsResponse struct {
	AdvantageAccounts []AdvantageAccount `json:"advantageAccounts" validate:"dive"`
}

// availabilityAccount is one library account's holdings of a title.
type availabilityAccount struct {
	ID              int64 `json:"id"`
	CopiesOwned     int   `json:"copiesOwned"`
	CopiesAvailable int   `json:"copiesAvailable"`
	Shared          bool  `json:"shared"`
}

type availabilityResponse struct {
	ID                   string                `json:"id"`
	ReserveID            string                `json:"reserveId"`
	ErrorCode            string                `json:"errorCode"`
	IsOwnedByCollections *bool                 `json:"isOwnedByCollections"`
	Accounts             []availabilityAccount `json:"accounts"`
	NumberOfHolds        *int                  `json:"numberOfHolds"`
}

// Metadata is the bibliographic document of one product. Only the parts
// used for format bookkeeping are decoded.
type Metadata struct {
	ID         string `json:"id" validate:"required"`
	CrossRefID int64  `json:"crossRefId"`
	Title      string `json:"title"`
	Formats    []struct {
		ID string `json:"id" validate:"required"`
	} `json:"formats" validate:"dive"`
}

// FormatIDs returns the vendor format names of the product.
func (m *Metadata) FormatIDs() []string {
	out := make([]string, len(m.Formats))
	for i, f := range m.Formats {
		out[i] = f.ID
	}
	return out
}

type product struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	DateAdded string `json:"dateAdded"`
	Links     struct {
		Availability *Link `json:"availability"`
	} `json:"links"`
}

type productsPage struct {
	TotalItems int             `json:"totalItems"`
	Products   []product       `json:"products"`
	Links      map[string]Link `json:"links"`
}

// ModelError reports a vendor document that lacks something needed to
// continue, such as an action or link template.
type ModelError struct {
	Message string
}

func (e *ModelError) Error() string { return e.Message }

// InvalidFieldOptionError is returned when a form value is not one of the
// field's advertised options.
type InvalidFieldOptionError struct {
	Field   string
	Value   string
	Options []string
}

func (e *InvalidFieldOptionError) Error() string {
	return fmt.Sprintf("Invalid option for field %s: %s. Valid options: %s",
		e.Field, e.Value, strings.Join(e.Options, ", "))
}

func notFound(name, what string, available []string) *ModelError {
	label := strings.ToUpper(what[:1]) + what[1:]
	return &ModelError{Message: fmt.Sprintf("%s not found: %s. Available %ss: %s",
		label, name, what, strings.Join(available, ", "))}
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
