package gcp

import "testing"

func TestResolveBucketConfig(t *testing.T) {
	cases := []struct {
		name     string
		mode     string
		emulator string
		want     StorageMode
		wantErr  bool
	}{
		{name: "default gcs", want: StorageModeGCS},
		{name: "emulator host implies emulator", emulator: "http://fake-gcs:4443", want: StorageModeGCSEmulator},
		{name: "explicit gcs ignores emulator", mode: "gcs", emulator: "http://fake-gcs:4443", want: StorageModeGCS},
		{name: "emulator without host", mode: "gcs_emulator", wantErr: true},
		{name: "emulator bad host", mode: "gcs_emulator", emulator: "fake-gcs", wantErr: true},
		{name: "unknown mode", mode: "s3", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("OBJECT_STORAGE_MODE", tc.mode)
			t.Setenv("STORAGE_EMULATOR_HOST", tc.emulator)
			cfg, err := ResolveBucketConfig("audio")
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", cfg)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveBucketConfig: %v", err)
			}
			if cfg.Mode != tc.want {
				t.Fatalf("mode = %q, want %q", cfg.Mode, tc.want)
			}
		})
	}
}

func TestResolveBucketConfigRequiresBucket(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "")
	if _, err := ResolveBucketConfig(" "); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestContentTypeForKey(t *testing.T) {
	if got := contentTypeForKey("audio/x.MP3"); got != "audio/mpeg" {
		t.Fatalf("mp3 content type = %q", got)
	}
	if got := contentTypeForKey("scripts/x.txt"); got != "text/plain; charset=utf-8" {
		t.Fatalf("txt content type = %q", got)
	}
}
