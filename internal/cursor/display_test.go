package cursor

import (
	"reflect"
	"testing"

	"github.com/hitoshi/userdeck/internal/model"
)

func TestResolveAvatarURL_StripsQuery(t *testing.T) {
	rec := model.Record{Avatar: "https://x/img.png?sz=200"}

	if got := ResolveAvatarURL(rec); got != "https://x/img.png" {
		t.Errorf("ResolveAvatarURL = %q, want %q", got, "https://x/img.png")
	}
}

func TestResolveAvatarURL_NoQueryUnchanged(t *testing.T) {
	rec := model.Record{Avatar: "https://x/img.png"}

	if got := ResolveAvatarURL(rec); got != "https://x/img.png" {
		t.Errorf("ResolveAvatarURL = %q, want %q", got, "https://x/img.png")
	}
}

func TestResolveAvatarURL_EmptyUsesFallback(t *testing.T) {
	for _, avatar := range []string{"", "   ", "?size=300x300"} {
		rec := model.Record{Avatar: avatar}
		if got := ResolveAvatarURL(rec); got != FallbackAvatarURL {
			t.Errorf("avatar=%q: ResolveAvatarURL = %q, want fallback", avatar, got)
		}
	}
}

func TestDisplayPairs_DefaultKeys(t *testing.T) {
	rec := model.Record{
		ID:        7,
		UID:       "0b1c",
		Password:  "secret",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Username:  "ada.lovelace",
		Email:     "ada@example.com",
	}

	got := DisplayPairs(rec, DefaultKeys)
	want := []Field{
		{Label: "UID", Value: "0b1c"},
		{Label: "ID", Value: "7"},
		{Label: "Username", Value: "ada.lovelace"},
		{Label: "First Name", Value: "Ada"},
		{Label: "Last Name", Value: "Lovelace"},
		{Label: "Email", Value: "ada@example.com"},
		{Label: "Password", Value: "secret"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DisplayPairs =\n%v\nwant\n%v", got, want)
	}
}

func TestDisplayPairs_ExtraAndUnknownKeys(t *testing.T) {
	rec := model.Record{Extra: map[string]string{"phone_number": "+1 555"}}

	got := DisplayPairs(rec, []string{"Phone_Number", "social_insurance_number"})
	want := []Field{
		{Label: "Phone Number", Value: "+1 555"},
		{Label: "Social Insurance Number", Value: ""},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DisplayPairs = %v, want %v", got, want)
	}
}

func TestDisplayPairs_Deterministic(t *testing.T) {
	rec := model.Record{ID: 1, Username: "u", Extra: map[string]string{"gender": "Male"}}
	keys := []string{"gender", "username", "id"}

	first := DisplayPairs(rec, keys)
	for i := 0; i < 10; i++ {
		if got := DisplayPairs(rec, keys); !reflect.DeepEqual(got, first) {
			t.Fatalf("DisplayPairs の結果が呼び出しごとに異なる: %v != %v", got, first)
		}
	}
}
