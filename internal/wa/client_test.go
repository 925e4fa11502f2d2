package wa

import "testing"

func TestParseIdentity(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"22991234567", "22991234567@s.whatsapp.net", false},
		{"+22991234567", "22991234567@s.whatsapp.net", false},
		{"22991234567@s.whatsapp.net", "22991234567@s.whatsapp.net", false},
		{"", "", true},
	}
	for _, c := range cases {
		jid, err := parseIdentity(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("parseIdentity(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseIdentity(%q): %v", c.in, err)
			continue
		}
		if jid.String() != c.want {
			t.Errorf("parseIdentity(%q) = %q, want %q", c.in, jid.String(), c.want)
		}
	}
}
