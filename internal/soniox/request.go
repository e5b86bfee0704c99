package soniox

import (
	"github.com/google/uuid"

	"github.com/emmett/sublive/internal/audio"
)

// RequestSettings is the part of the user configuration that shapes the
// handshake. It is read once per session.
type RequestSettings struct {
	APIKey            string
	Model             string
	LanguageHints     []string
	Context           string
	Speakers          bool
	Translate         bool
	TargetLanguage    string
	ClientReferenceID string
}

// BuildRequest assembles the handshake for the negotiated capture format.
// A client reference id is generated when settings carry none.
func BuildRequest(s RequestSettings, format audio.Format) Request {
	model := s.Model
	if model == "" {
		model = DefaultModel
	}
	ref := s.ClientReferenceID
	if ref == "" {
		ref = uuid.NewString()
	}

	hints := make([]string, len(s.LanguageHints))
	copy(hints, s.LanguageHints)

	req := Request{
		APIKey:                       s.APIKey,
		Model:                        model,
		AudioFormat:                  AudioFormatPCM16LE,
		NumChannels:                  format.Channels,
		SampleRate:                   format.SampleRate,
		LanguageHints:                hints,
		Context:                      s.Context,
		EnableSpeakerDiarization:     s.Speakers,
		EnableLanguageIdentification: true,
		EnableNonFinalTokens:         true,
		EnableEndpointDetection:      true,
		ClientReferenceID:            ref,
	}
	if s.Translate && s.TargetLanguage != "" {
		req.Translation = &TranslationConfig{
			Type:           "one_way",
			TargetLanguage: s.TargetLanguage,
		}
	}
	return req
}
