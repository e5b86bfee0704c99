package soniox

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/emmett/sublive/internal/audio"
)

func TestParseMessage(t *testing.T) {
	t.Run("response", func(t *testing.T) {
		data := `{"tokens":[{"text":"Hi","is_final":true,"speaker":"1","start_ms":10,"end_ms":90},
			{"text":" there","is_final":false,"translation_status":"translation"}],
			"final_audio_proc_ms":90,"total_audio_proc_ms":300}`
		resp, err := ParseMessage([]byte(data))
		if err != nil {
			t.Fatalf("ParseMessage: %v", err)
		}
		if len(resp.Tokens) != 2 {
			t.Fatalf("got %d tokens, want 2", len(resp.Tokens))
		}
		if tok := resp.Tokens[0]; tok.Text != "Hi" || !tok.IsFinal || tok.Speaker != "1" || tok.StartMs == nil || *tok.StartMs != 10 {
			t.Errorf("unexpected first token %+v", tok)
		}
		if resp.Tokens[1].TranslationStatus != TranslationResult {
			t.Errorf("translation_status = %q", resp.Tokens[1].TranslationStatus)
		}
		if resp.TotalAudioProcMs != 300 || resp.FinalAudioProcMs != 90 {
			t.Errorf("unexpected proc ms %+v", resp)
		}
		if resp.CountFinal() != 1 {
			t.Errorf("CountFinal = %d, want 1", resp.CountFinal())
		}
	})

	t.Run("finished", func(t *testing.T) {
		resp, err := ParseMessage([]byte(`{"tokens":[],"final_audio_proc_ms":0,"total_audio_proc_ms":0,"finished":true}`))
		if err != nil {
			t.Fatalf("ParseMessage: %v", err)
		}
		if !resp.Finished {
			t.Error("expected Finished")
		}
	})

	t.Run("service error", func(t *testing.T) {
		_, err := ParseMessage([]byte(`{"error_code":503,"error_message":"overloaded"}`))
		var se *ServiceError
		if !errors.As(err, &se) {
			t.Fatalf("got %v, want *ServiceError", err)
		}
		if se.Code != 503 || se.Message != "overloaded" {
			t.Errorf("unexpected service error %+v", se)
		}
		if !IsRecoverable(err) {
			t.Error("503 should be recoverable")
		}
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseMessage([]byte(`{"tokens":[`))
		if !errors.Is(err, ErrMalformedMessage) {
			t.Fatalf("got %v, want ErrMalformedMessage", err)
		}
	})
}

func TestServiceErrorRecoverable(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{408, true},
		{502, true},
		{503, true},
		{400, false},
		{401, false},
		{500, false},
	}
	for _, tt := range tests {
		se := &ServiceError{Code: tt.code}
		if got := se.Recoverable(); got != tt.want {
			t.Errorf("code %d: Recoverable() = %v, want %v", tt.code, got, tt.want)
		}
	}
	if IsRecoverable(errors.New("plain")) {
		t.Error("plain error must not be recoverable")
	}
}

func TestBuildRequest(t *testing.T) {
	format := audio.Format{SampleRate: 48000, Channels: 2}

	t.Run("defaults", func(t *testing.T) {
		req := BuildRequest(RequestSettings{APIKey: "key", LanguageHints: []string{"en", "ru"}, Speakers: true}, format)
		if req.Model != DefaultModel || req.AudioFormat != AudioFormatPCM16LE {
			t.Errorf("unexpected model/format %q %q", req.Model, req.AudioFormat)
		}
		if req.SampleRate != 48000 || req.NumChannels != 2 {
			t.Errorf("format not copied: %d Hz %d ch", req.SampleRate, req.NumChannels)
		}
		if !req.EnableSpeakerDiarization || !req.EnableNonFinalTokens || !req.EnableEndpointDetection {
			t.Errorf("flags not set: %+v", req)
		}
		if req.ClientReferenceID == "" {
			t.Error("expected generated client reference id")
		}
		if req.Translation != nil {
			t.Error("translation should be off by default")
		}
	})

	t.Run("translation", func(t *testing.T) {
		req := BuildRequest(RequestSettings{APIKey: "key", Translate: true, TargetLanguage: "de", ClientReferenceID: "ref"}, format)
		if req.Translation == nil || req.Translation.Type != "one_way" || req.Translation.TargetLanguage != "de" {
			t.Fatalf("unexpected translation %+v", req.Translation)
		}
		if req.ClientReferenceID != "ref" {
			t.Errorf("client reference id = %q", req.ClientReferenceID)
		}
	})

	t.Run("hints are copied", func(t *testing.T) {
		hints := []string{"en"}
		req := BuildRequest(RequestSettings{LanguageHints: hints}, format)
		hints[0] = "fr"
		if req.LanguageHints[0] != "en" {
			t.Error("request shares the settings slice")
		}
	})
}

func TestRequestMarshal(t *testing.T) {
	req := BuildRequest(RequestSettings{APIKey: "key", Context: "meeting", ClientReferenceID: "ref"}, audio.Format{SampleRate: 16000, Channels: 1})
	data, err := req.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	want := map[string]any{
		"api_key":      "key",
		"model":        DefaultModel,
		"audio_format": "pcm_s16le",
		"sample_rate":  float64(16000),
		"num_channels": float64(1),
		"context":      "meeting",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
	if hints, ok := got["language_hints"].([]any); !ok || len(hints) != 0 {
		t.Errorf("language_hints = %v, want empty array", got["language_hints"])
	}
	if strings.Contains(string(data), "translation") {
		t.Errorf("translation must be omitted: %s", data)
	}
	if _, ok := got["enable_speaker_diarization"]; ok {
		t.Error("diarization flag should be omitted when off")
	}
}

func TestLanguages(t *testing.T) {
	if !IsSupportedLanguage("en") || !IsSupportedLanguage("uk") {
		t.Error("expected en and uk to be supported")
	}
	if IsSupportedLanguage("xx") {
		t.Error("xx must not be supported")
	}
	codes := LanguageCodes()
	if len(codes) != len(Languages) {
		t.Fatalf("got %d codes, want %d", len(codes), len(Languages))
	}
	for i := 1; i < len(codes); i++ {
		if codes[i-1] >= codes[i] {
			t.Fatalf("codes not sorted at %d: %v", i, codes[i-1:i+1])
		}
	}
}
