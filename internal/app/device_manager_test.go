package app

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/emmett/sublive/internal/audio"
)

func TestSelectDevice(t *testing.T) {
	devices := []audio.DeviceInfo{
		{ID: "mic-0", Name: "Built-in Microphone", Kind: audio.DeviceKindCapture, IsDefault: true},
		{ID: "mic-1", Name: "USB Headset", Kind: audio.DeviceKindCapture},
	}

	tests := []struct {
		name    string
		source  audio.Source
		query   string
		wantID  string
		wantErr bool
	}{
		{"by id", audio.SourceMicrophone, "mic-1", "mic-1", false},
		{"by partial name", audio.SourceMicrophone, "usb", "mic-1", false},
		{"default", audio.SourceMicrophone, "", "mic-0", false},
		{"unknown", audio.SourceMicrophone, "webcam", "", true},
		{"file source", audio.SourceFile, "anything", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			dm := &DeviceManager{out: &out, list: func(audio.DeviceKind) ([]audio.DeviceInfo, error) {
				return devices, nil
			}}

			got, err := dm.SelectDevice(tt.source, tt.query)
			if tt.wantErr {
				if !errors.Is(err, audio.ErrDeviceNotFound) {
					t.Fatalf("err = %v, want ErrDeviceNotFound", err)
				}
				if !strings.Contains(out.String(), "USB Headset") {
					t.Errorf("choices not listed: %q", out.String())
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectDevice: %v", err)
			}
			if tt.wantID == "" {
				if got != nil {
					t.Errorf("got %+v, want nil", got)
				}
				return
			}
			if got == nil || got.ID != tt.wantID {
				t.Errorf("got %+v, want %s", got, tt.wantID)
			}
		})
	}
}
