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

	"github.com/tomtom215/circulation/internal/circulation"
	"github.com/tomtom215/circulation/internal/models"
)

// Overdrive format names. The two manifest names are internal: Overdrive
// delivers them through the matching streaming format.
const (
	FormatEPUBOpen          = "ebook-epub-open"
	FormatEPUBAdobe         = "ebook-epub-adobe"
	FormatPDFOpen           = "ebook-pdf-open"
	FormatPDFAdobe          = "ebook-pdf-adobe"
	FormatOverdriveRead     = "ebook-overdrive"
	FormatAudiobook         = "audiobook-overdrive"
	FormatAudiobookManifest = "audiobook-overdrive-manifest"
	FormatEbookManifest     = "ebook-overdrive-manifest"
	FormatKindle            = "ebook-kindle"
	FormatNook              = "periodicals-nook"
	FormatAudiobookMP3      = "audiobook-mp3"
	FormatMusicMP3          = "music-mp3"
	FormatVideoStreaming    = "video-streaming"
)

type formatSet map[string]bool

func newFormatSet(formats ...string) formatSet {
	s := make(formatSet, len(formats))
	for _, f := range formats {
		s[f] = true
	}
	return s
}

// intersect returns the members of s also in other.
func (s formatSet) intersect(other map[string]bool) formatSet {
	out := make(formatSet)
	for f := range s {
		if other[f] {
			out[f] = true
		}
	}
	return out
}

func (s formatSet) sorted() []string {
	out := make([]string, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

var (
	// usableFormats are the formats a patron can read through this service.
	usableFormats = newFormatSet(FormatEPUBOpen, FormatEPUBAdobe, FormatPDFAdobe, FormatPDFOpen,
		FormatOverdriveRead, FormatAudiobook)

	streamingFormats = newFormatSet(FormatOverdriveRead, FormatAudiobook)

	// manifestFormats maps each internal manifest format onto the vendor
	// format it is delivered through.
	manifestFormats = map[string]string{
		FormatAudiobookManifest: FormatAudiobook,
		FormatEbookManifest:     FormatOverdriveRead,
	}

	// lockInFormats can be committed to with the format action.
	lockInFormats = func() formatSet {
		s := make(formatSet)
		for f := range usableFormats {
			if !streamingFormats[f] && manifestFormats[f] == "" {
				s[f] = true
			}
		}
		return s
	}()

	incompatibleFormats = newFormatSet(FormatKindle)

	// openFormats are DRM-free and fulfilled by redirect.
	openFormats = newFormatSet(FormatEPUBOpen, FormatPDFOpen)
)

// internalFormats maps a delivery mechanism to the format name sent to
// Overdrive when fulfilling it.
var internalFormats = map[models.DeliveryMechanism]string{
	{ContentType: models.MediaTypeEPUB, DRMScheme: models.DRMNone}:                    FormatEPUBOpen,
	{ContentType: models.MediaTypeEPUB, DRMScheme: models.DRMAdobe}:                   FormatEPUBAdobe,
	{ContentType: models.MediaTypePDF, DRMScheme: models.DRMNone}:                     FormatPDFOpen,
	{ContentType: models.MediaTypePDF, DRMScheme: models.DRMAdobe}:                    FormatPDFAdobe,
	{ContentType: models.MediaTypeStreamingText, DRMScheme: models.DRMStreaming}:      FormatOverdriveRead,
	{ContentType: models.MediaTypeStreamingAudio, DRMScheme: models.DRMStreaming}:     FormatAudiobook,
	{ContentType: models.MediaTypeOverdriveAudioManifest, DRMScheme: models.DRMLibby}: FormatAudiobookManifest,
	{ContentType: models.MediaTypeOverdriveEbookManifest, DRMScheme: models.DRMLibby}: FormatEbookManifest,
}

var mechanismsByInternalFormat = func() map[string]models.DeliveryMechanism {
	out := make(map[string]models.DeliveryMechanism, len(internalFormats))
	for m, f := range internalFormats {
		out[f] = m
	}
	return out
}()

// InternalFormat returns the Overdrive format name for m.
func InternalFormat(m models.DeliveryMechanism) (string, error) {
	f, ok := internalFormats[m]
	if !ok {
		return "", circulation.Newf(circulation.KindFormatNotAvailable,
			"Could not map delivery mechanism %s to an Overdrive format", m)
	}
	return f, nil
}

// MechanismFor returns the delivery mechanism of an internal format.
func MechanismFor(format string) (models.DeliveryMechanism, bool) {
	m, ok := mechanismsByInternalFormat[format]
	return m, ok
}

// formatMechanism is one mechanism a catalog format implies, and whether
// it is assumed available before a loan reveals more.
type formatMechanism struct {
	mechanism models.DeliveryMechanism
	available bool
}

func fm(contentType, drm string, available bool) formatMechanism {
	return formatMechanism{models.DeliveryMechanism{ContentType: contentType, DRMScheme: drm}, available}
}

// catalogFormats maps formats in product metadata to the mechanisms they
// imply. Overdrive Read titles are almost always Adobe EPUBs; the other
// ebook mechanisms are corrected once a checkout lists real formats.
var catalogFormats = map[string][]formatMechanism{
	FormatOverdriveRead: {
		fm(models.MediaTypeEPUB, models.DRMAdobe, true),
		fm(models.MediaTypeEPUB, models.DRMNone, false),
		fm(models.MediaTypePDF, models.DRMNone, false),
		fm(models.MediaTypeStreamingText, models.DRMStreaming, true),
	},
	FormatAudiobook: {
		fm(models.MediaTypeOverdriveAudioManifest, models.DRMLibby, true),
		fm(models.MediaTypeStreamingAudio, models.DRMStreaming, true),
	},
	FormatEPUBAdobe:      {fm(models.MediaTypeEPUB, models.DRMAdobe, true)},
	FormatEPUBOpen:       {fm(models.MediaTypeEPUB, models.DRMNone, true)},
	FormatPDFAdobe:       {fm(models.MediaTypePDF, models.DRMAdobe, true)},
	FormatPDFOpen:        {fm(models.MediaTypePDF, models.DRMNone, true)},
	FormatAudiobookMP3:   {fm(models.MediaTypeODMedia, models.DRMOverdrive, true)},
	FormatMusicMP3:       {fm(models.MediaTypeODMedia, models.DRMOverdrive, true)},
	FormatVideoStreaming: {fm(models.MediaTypeStreamingVideo, models.DRMStreaming, true)},
	FormatKindle:         {fm(models.MediaTypeKindle, models.DRMKindle, true)},
	FormatNook:           {fm(models.MediaTypeNook, models.DRMNook, true)},
}

// ResolveMechanisms returns the mechanisms available for a title offered
// in the given catalog formats, sorted. Unknown formats are ignored.
func ResolveMechanisms(formats []string) []models.DeliveryMechanism {
	seen := make(map[models.DeliveryMechanism]bool)
	for _, f := range formats {
		for _, m := range catalogFormats[f] {
			if m.available {
				seen[m.mechanism] = true
			}
		}
	}
	return sortedMechanisms(seen)
}

// CheckoutMechanisms returns the mechanisms a checkout can be fulfilled
// with. A format is available exactly when the checkout lists it.
func CheckoutMechanisms(c *Checkout) []models.DeliveryMechanism {
	available := c.AvailableFormats()
	seen := make(map[models.DeliveryMechanism]bool)
	for f := range available {
		if m, ok := mechanismsByInternalFormat[f]; ok {
			seen[m] = true
		}
	}
	return sortedMechanisms(seen)
}

func sortedMechanisms(set map[models.DeliveryMechanism]bool) []models.DeliveryMechanism {
	out := make([]models.DeliveryMechanism, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ContentType != out[j].ContentType {
			return out[i].ContentType < out[j].ContentType
		}
		return out[i].DRMScheme < out[j].DRMScheme
	})
	return out
}

// UsableFormats returns the checkout's formats this service can deliver.
func UsableFormats(c *Checkout) formatSet {
	return usableFormats.intersect(c.AvailableFormats())
}

// LockedTo returns the mechanism a locked-in checkout is committed to. It
// is nil unless the loan is locked in and exactly one usable lock-in
// format remains.
func LockedTo(c *Checkout) *models.DeliveryMechanism {
	if !c.LockedIn {
		return nil
	}
	locked := UsableFormats(c).intersect(lockInFormats)
	if len(locked) != 1 {
		return nil
	}
	m, ok := mechanismsByInternalFormat[locked.sorted()[0]]
	if !ok {
		return nil
	}
	return &m
}

// DownloadLinkError reports which part of a format's link structure is
// missing.
type DownloadLinkError struct {
	Message string
}

func (e *DownloadLinkError) Error() string { return e.Message }

// ExtractDownloadLink returns the download link of one format. Manifest
// links are converted with MakeDirectDownloadLink; other links get
// errorURL substituted for {errorpageurl}.
func ExtractDownloadLink(f *Format, errorURL string, fetchManifest bool) (string, error) {
	formatType := "(unknown)"
	if f != nil && f.FormatType != "" {
		formatType = f.FormatType
	}
	if f == nil || f.LinkTemplates == nil {
		return "", &DownloadLinkError{Message: "No linkTemplates for format " + formatType}
	}
	tpl, ok := f.LinkTemplates["downloadLink"]
	if !ok {
		return "", &DownloadLinkError{Message: "No downloadLink for format " + formatType}
	}
	if tpl.Href == "" {
		return "", &DownloadLinkError{Message: "No downloadLink href for format " + formatType}
	}
	if fetchManifest {
		return MakeDirectDownloadLink(tpl.Href), nil
	}
	return strings.ReplaceAll(tpl.Href, "{errorpageurl}", errorURL), nil
}

var templateArgPatterns = []*regexp.Regexp{
	regexp.MustCompile(`odreadauthurl=\{odreadauthurl\}&?`),
	regexp.MustCompile(`errorpageurl=\{errorpageurl\}&?`),
}

// MakeDirectDownloadLink turns an Overdrive Read or Listen link template
// into a manifest link: the auth and error URL arguments are removed and
// contentfile=true is added.
func MakeDirectDownloadLink(link string) string {
	for _, re := range templateArgPatterns {
		link = re.ReplaceAllString(link, "")
	}
	switch {
	case !strings.Contains(link, "?"):
		return link + "?contentfile=true"
	case strings.HasSuffix(link, "&"), strings.HasSuffix(link, "?"):
		return link + "contentfile=true"
	default:
		return link + "&contentfile=true"
	}
}

// GetDownloadLink finds formatType on the checkout and returns its
// download link.
func GetDownloadLink(c *Checkout, formatType, errorURL string) (string, error) {
	f, err := fulfillFormat(c, formatType)
	if err != nil {
		return "", err
	}
	_, manifest := manifestFormats[formatType]
	return ExtractDownloadLink(f, errorURL, manifest)
}

// fulfillFormat returns the checkout format for formatType or the
// circulation error explaining why there is none.
func fulfillFormat(c *Checkout, formatType string) (*Format, error) {
	if f := c.GetFormat(formatType); f != nil {
		return f, nil
	}
	available := c.AvailableFormats()
	if len(incompatibleFormats.intersect(available)) > 0 {
		return nil, circulation.New(circulation.KindFulfilledOnIncompatiblePlatform,
			"It looks like this loan was already fulfilled on another platform, most likely Amazon Kindle. "+
				"We're not allowed to also send it to you as an EPUB.")
	}
	return nil, circulation.Newf(circulation.KindNoAcceptableFormat,
		"Could not find specified format %s. Available formats: %s",
		formatType, strings.Join(formatSet(available).sorted(), ", "))
}

// manifestLink is the download link of a manifest format with its query
// replaced by contentfile=true.
func manifestLink(f *Format) (string, error) {
	tpl, ok := f.LinkTemplates["downloadLink"]
	if !ok || tpl.Href == "" {
		return "", &DownloadLinkError{Message: "No downloadLink for format " + f.FormatType}
	}
	u, err := url.Parse(tpl.Href)
	if err != nil {
		return "", fmt.Errorf("parse download link: %w", err)
	}
	u.RawQuery = "contentfile=true"
	return u.String(), nil
}
