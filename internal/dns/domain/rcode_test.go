package domain

import "testing"

func TestRCode_IsValid(t *testing.T) {
	for _, rc := range []RCode{RCodeNoError, RCodeFormErr, RCodeServFail, RCodeNXDomain, RCodeNotImp, RCodeRefused, 10} {
		if !rc.IsValid() {
			t.Errorf("RCode %d should be valid", rc)
		}
	}
	for _, rc := range []RCode{11, 16, 255} {
		if rc.IsValid() {
			t.Errorf("RCode %d should be invalid", rc)
		}
	}
}

func TestRCode_String(t *testing.T) {
	tests := []struct {
		rc   RCode
		want string
	}{
		{RCodeNoError, "NOERROR"},
		{RCodeFormErr, "FORMERR"},
		{RCodeServFail, "SERVFAIL"},
		{RCodeNXDomain, "NXDOMAIN"},
		{RCodeNotImp, "NOTIMP"},
		{RCodeRefused, "REFUSED"},
		{9, "NOTAUTH"},
		{RCode(42), "UNKNOWN(42)"},
	}

	for _, tt := range tests {
		if got := tt.rc.String(); got != tt.want {
			t.Errorf("RCode(%d).String() = %q, want %q", tt.rc, got, tt.want)
		}
	}
}
