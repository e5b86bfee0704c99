// Package soniox speaks the Soniox realtime transcription protocol over a
// WebSocket connection.
package soniox

import (
	"encoding/json"
	"fmt"
)

const (
	// DefaultURL is the realtime transcription endpoint
	DefaultURL = "wss://stt-rt.soniox.com/transcribe-websocket"
	// DefaultModel is the realtime model requested when none is configured
	DefaultModel = "stt-rt-v4"
	// AudioFormatPCM16LE is the only audio format this client sends
	AudioFormatPCM16LE = "pcm_s16le"
)

// Translation stages reported on tokens
const (
	TranslationNone     = "none"
	TranslationOriginal = "original"
	TranslationResult   = "translation"
)

// Token is one fragment of recognized speech
type Token struct {
	Text              string   `json:"text"`
	StartMs           *float64 `json:"start_ms,omitempty"`
	EndMs             *float64 `json:"end_ms,omitempty"`
	Confidence        float64  `json:"confidence,omitempty"`
	IsFinal           bool     `json:"is_final"`
	Speaker           string   `json:"speaker,omitempty"`
	Language          string   `json:"language,omitempty"`
	SourceLanguage    string   `json:"source_language,omitempty"`
	TranslationStatus string   `json:"translation_status,omitempty"`
}

// Response is one recognition message from the service
type Response struct {
	Tokens           []Token `json:"tokens"`
	FinalAudioProcMs float64 `json:"final_audio_proc_ms"`
	TotalAudioProcMs float64 `json:"total_audio_proc_ms"`
	Finished         bool    `json:"finished,omitempty"`
}

// CountFinal returns how many tokens in r are final
func (r *Response) CountFinal() int {
	n := 0
	for _, t := range r.Tokens {
		if t.IsFinal {
			n++
		}
	}
	return n
}

// TranslationConfig requests translation of the recognized speech
type TranslationConfig struct {
	Type           string `json:"type"`
	TargetLanguage string `json:"target_language,omitempty"`
	LanguageA      string `json:"language_a,omitempty"`
	LanguageB      string `json:"language_b,omitempty"`
}

// Request is the handshake sent as the first text frame of a connection
type Request struct {
	APIKey                       string             `json:"api_key"`
	Model                        string             `json:"model"`
	AudioFormat                  string             `json:"audio_format"`
	NumChannels                  uint32             `json:"num_channels,omitempty"`
	SampleRate                   uint32             `json:"sample_rate,omitempty"`
	LanguageHints                []string           `json:"language_hints"`
	Context                      string             `json:"context,omitempty"`
	EnableSpeakerDiarization     bool               `json:"enable_speaker_diarization,omitempty"`
	EnableLanguageIdentification bool               `json:"enable_language_identification,omitempty"`
	EnableNonFinalTokens         bool               `json:"enable_non_final_tokens,omitempty"`
	EnableEndpointDetection      bool               `json:"enable_endpoint_detection,omitempty"`
	ClientReferenceID            string             `json:"client_reference_id,omitempty"`
	Translation                  *TranslationConfig `json:"translation,omitempty"`
}

// Marshal encodes the request as the handshake payload
func (r Request) Marshal() ([]byte, error) {
	if r.LanguageHints == nil {
		r.LanguageHints = []string{}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return data, nil
}

// message is the union of every inbound text payload
type message struct {
	Response
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// ParseMessage decodes one inbound text frame. It returns either a
// response or a *ServiceError; anything that is not valid JSON wraps
// ErrMalformedMessage.
func ParseMessage(data []byte) (*Response, error) {
	var m message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if m.ErrorCode != nil {
		return nil, &ServiceError{Code: *m.ErrorCode, Message: m.ErrorMessage}
	}
	resp := m.Response
	return &resp, nil
}
