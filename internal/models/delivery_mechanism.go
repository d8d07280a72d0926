// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package models

import "strings"

// Content types.
const (
	MediaTypeEPUB                   = "application/epub+zip"
	MediaTypePDF                    = "application/pdf"
	MediaTypeStreamingText          = "text/html" + StreamingProfile
	MediaTypeStreamingAudio         = "audio/mpeg" + StreamingProfile
	MediaTypeStreamingVideo         = "video/mp4" + StreamingProfile
	MediaTypeKindle                 = "Kindle via Amazon"
	MediaTypeNook                   = "Nook via B&N"
	MediaTypeODMedia                = "application/x-od-media"
	MediaTypeOverdriveAudioManifest = "application/vnd.overdrive.circulation.api+json;profile=audiobook"
	MediaTypeOverdriveEbookManifest = "application/vnd.overdrive.circulation.api+json;profile=ebook"
)

// DRM schemes. DRMNone is the empty string: the content is not encumbered.
const (
	DRMNone      = ""
	DRMAdobe     = "application/vnd.adobe.adept+xml"
	DRMStreaming = "Streaming"
	DRMLibby     = "Libby DRM"
	DRMOverdrive = "Overdrive DRM"
	DRMKindle    = "Kindle DRM"
	DRMNook      = "Nook DRM"
)

// StreamingProfile marks a media type as streamed rather than downloaded.
const StreamingProfile = `;profile="http://librarysimplified.org/terms/profiles/streaming-media"`

// DeliveryMechanism is one way to consume a title: a content type paired
// with a DRM scheme. Delivery mechanisms are shared across pools.
type DeliveryMechanism struct {
	ContentType string `json:"content_type" db:"content_type"`
	DRMScheme   string `json:"drm_scheme" db:"drm_scheme"`
}

func (m DeliveryMechanism) String() string {
	drm := m.DRMScheme
	if drm == DRMNone {
		drm = "no DRM"
	}
	return m.ContentType + " (" + drm + ")"
}

// DRMFree reports whether the mechanism carries no DRM.
func (m DeliveryMechanism) DRMFree() bool { return m.DRMScheme == DRMNone }

// Streaming reports whether the content is read in a browser rather than
// downloaded. Streaming a loan never locks it to a format.
func (m DeliveryMechanism) Streaming() bool {
	return m.DRMScheme == DRMStreaming || strings.HasSuffix(m.ContentType, StreamingProfile)
}
