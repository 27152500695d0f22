package desktop

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeKdotool answers kdotool invocations from a canned table keyed on
// the joined argument list, recording every call.
type fakeKdotool struct {
	responses map[string]string
	errs      map[string]error
	calls     [][]string
}

func (f *fakeKdotool) run(_ context.Context, args ...string) (string, error) {
	f.calls = append(f.calls, args)
	key := strings.Join(args, " ")
	if err := f.errs[key]; err != nil {
		return "", err
	}
	return f.responses[key], nil
}

func testKde(fake *fakeKdotool) *KdePlasma {
	return &KdePlasma{logger: testLogger(), run: fake.run}
}

func TestKdeFindWindowsResolvesTitles(t *testing.T) {
	fake := &fakeKdotool{
		responses: map[string]string{
			"search --name Input capture requested": "{a1}\n{b2}\n",
			"getwindowname {a1}":                    "Input capture requested",
			"getwindowname {b2}":                    "Input capture requested (xdg-desktop-portal)",
		},
	}
	k := testKde(fake)

	windows, err := k.FindWindows(context.Background(), "Input capture requested")
	if err != nil {
		t.Fatalf("FindWindows failed: %v", err)
	}

	want := []Window{
		{ID: "{a1}", Title: "Input capture requested"},
		{ID: "{b2}", Title: "Input capture requested (xdg-desktop-portal)"},
	}
	if !reflect.DeepEqual(windows, want) {
		t.Errorf("FindWindows = %v, want %v", windows, want)
	}
}

func TestKdeFindWindowsTitleFallback(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeKdotool
	}{
		{
			name: "name lookup fails",
			fake: &fakeKdotool{
				responses: map[string]string{"search --name Remote control requested": "{c3}"},
				errs:      map[string]error{"getwindowname {c3}": errors.New("window not found")},
			},
		},
		{
			name: "name lookup empty",
			fake: &fakeKdotool{
				responses: map[string]string{"search --name Remote control requested": "{c3}"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := testKde(tt.fake)

			windows, err := k.FindWindows(context.Background(), "Remote control requested")
			if err != nil {
				t.Fatalf("FindWindows failed: %v", err)
			}

			want := []Window{{ID: "{c3}", Title: "Remote control requested"}}
			if !reflect.DeepEqual(windows, want) {
				t.Errorf("FindWindows = %v, want %v", windows, want)
			}
		})
	}
}

func TestKdeFindWindowsNoMatches(t *testing.T) {
	fake := &fakeKdotool{}
	k := testKde(fake)

	windows, err := k.FindWindows(context.Background(), "Input capture requested")
	if err != nil {
		t.Fatalf("FindWindows failed: %v", err)
	}
	if windows != nil {
		t.Errorf("windows = %v, want none", windows)
	}
	if len(fake.calls) != 1 {
		t.Errorf("calls = %d, want only the search", len(fake.calls))
	}
}

func TestKdeHasFocus(t *testing.T) {
	fake := &fakeKdotool{
		responses: map[string]string{"getactivewindow": "{a1}"},
	}
	k := testKde(fake)

	focused, err := k.HasFocus(context.Background(), "{a1}")
	if err != nil {
		t.Fatalf("HasFocus failed: %v", err)
	}
	if !focused {
		t.Error("HasFocus = false for the active window")
	}

	focused, err = k.HasFocus(context.Background(), "{b2}")
	if err != nil {
		t.Fatalf("HasFocus failed: %v", err)
	}
	if focused {
		t.Error("HasFocus = true for a background window")
	}
}

func TestKdeActivate(t *testing.T) {
	fake := &fakeKdotool{}
	k := testKde(fake)

	if err := k.Activate(context.Background(), "{a1}"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	want := [][]string{{"windowactivate", "{a1}"}}
	if !reflect.DeepEqual(fake.calls, want) {
		t.Errorf("calls = %v, want %v", fake.calls, want)
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "single id",
			in:   "{1a2b3c}",
			want: []string{"{1a2b3c}"},
		},
		{
			name: "multiple ids",
			in:   "{1a2b3c}\n{4d5e6f}\n",
			want: []string{"{1a2b3c}", "{4d5e6f}"},
		},
		{
			name: "windows line endings",
			in:   "{1a2b3c}\r\n{4d5e6f}\r\n",
			want: []string{"{1a2b3c}", "{4d5e6f}"},
		},
		{
			name: "blank lines dropped",
			in:   "\n{1a2b3c}\n\n",
			want: []string{"{1a2b3c}"},
		},
		{
			name: "empty output",
			in:   "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitLines(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitLines(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
