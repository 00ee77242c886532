package openai

import "testing"

func TestDecodeJSONObject(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		wantKey string
		wantErr bool
	}{
		{name: "plain", in: `{"type":"임대차"}`, wantKey: "type"},
		{name: "fenced", in: "```json\n{\"type\":\"매매\"}\n```", wantKey: "type"},
		{name: "bare fence", in: "```\n{\"a\":1}\n```", wantKey: "a"},
		{name: "array", in: `[1,2]`, wantErr: true},
		{name: "null", in: `null`, wantErr: true},
		{name: "garbage", in: `type: 매매`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeJSONObject(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeJSONObject: %v", err)
			}
			if _, ok := got[tc.wantKey]; !ok {
				t.Fatalf("missing key %q in %v", tc.wantKey, got)
			}
		})
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(nil, Config{}); err == nil {
		t.Fatalf("expected missing key error")
	}
}
