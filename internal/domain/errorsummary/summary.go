// Package errorsummary prepares an event's processing errors for display in
// the error banner.
package errorsummary

import (
	"maps"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/okian/mapcheck/internal/domain/diagnostic"
	model "github.com/okian/mapcheck/internal/domain/model"
)

var (
	windowsPath = regexp.MustCompile(`(?i)^([a-z]:\\|\\\\)`)

	keyLabels = map[string]string{
		"image_uuid": "Debug ID",
		"image_name": "File Name",
		"image_path": "File Path",
	}
)

// Detail is one labelled value shown when an item is expanded.
type Detail struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value any    `json:"value"`
}

// Item is one line of the error banner.
type Item struct {
	Type       string   `json:"type"`
	Path       string   `json:"path,omitempty"`
	Message    string   `json:"message"`
	Details    []Detail `json:"details"`
	Expandable bool     `json:"expandable"`
}

// Banner lists the errors shown above an event.
type Banner struct {
	HasErrors bool   `json:"hasErrors"`
	Items     []Item `json:"items"`
}

// BuildBanner lists the event's own errors followed by the checker's
// diagnostics.
func BuildBanner(event *model.Event, diags []diagnostic.Diagnostic) Banner {
	b := Banner{Items: []Item{}}
	if event != nil {
		for _, e := range event.Errors {
			b.Items = append(b.Items, CleanItem(e))
		}
	}
	for _, d := range diags {
		b.Items = append(b.Items, CleanItem(diagnostic.ToEventError(d)))
	}
	b.HasErrors = len(b.Items) > 0
	return b
}

// CleanItem turns an error into a banner item. The error's data is copied,
// never modified.
func CleanItem(e model.EventError) Item {
	data := maps.Clone(e.Data)
	if data == nil {
		data = map[string]any{}
	}

	item := Item{Type: e.Type, Message: e.Message}
	if name, ok := data["name"].(string); ok {
		item.Path = name
		delete(data, "name")
	}

	if msg, ok := data["message"].(string); ok && msg == "None" {
		delete(data, "message")
	}

	if p, ok := data["image_path"].(string); ok {
		dir, file := splitImagePath(p)
		data["image_path"] = dir
		data["image_name"] = file
	}

	server, okServer := data["server_time"].(string)
	sdk, okSDK := data["sdk_time"].(string)
	if okServer && okSDK {
		if d, ok := adjustment(server, sdk); ok {
			data["message"] = "Adjusted timestamps by " + d
		}
	}

	item.Details = make([]Detail, 0, len(data))
	for k, v := range data {
		item.Details = append(item.Details, Detail{Key: k, Label: Label(k), Value: v})
	}
	sort.Slice(item.Details, func(i, j int) bool {
		if item.Details[i].Label == item.Details[j].Label {
			return item.Details[i].Key < item.Details[j].Key
		}
		return item.Details[i].Label < item.Details[j].Label
	})
	item.Expandable = len(item.Details) > 0
	return item
}

// splitImagePath separates the file name from its directory. The directory
// keeps its trailing separator.
func splitImagePath(p string) (dir, file string) {
	sep := "/"
	if windowsPath.MatchString(p) {
		sep = `\`
	}
	parts := strings.Split(p, sep)
	file = parts[len(parts)-1]
	parts = parts[:len(parts)-1]
	if len(parts) == 0 {
		return "", file
	}
	return strings.Join(parts, sep) + sep, file
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// adjustment humanizes the distance between the two clocks.
func adjustment(server, sdk string) (string, bool) {
	a, okA := parseTime(server)
	b, okB := parseTime(sdk)
	if !okA || !okB {
		return "", false
	}
	diff := b.Sub(a)
	if diff < 0 {
		diff = -diff
	}
	diff = diff.Round(roundingUnit(diff))
	return strings.TrimSpace(humanize.CustomRelTime(a, a.Add(diff), "", "", relTimeMagnitudes)), true
}

const (
	day   = 24 * time.Hour
	month = 2629746 * time.Second
	year  = 31556952 * time.Second
)

// relTimeMagnitudes follows the wording of browser relative time: single
// units are spelled out and anything under 45 seconds is "a few seconds".
var relTimeMagnitudes = []humanize.RelTimeMagnitude{
	{D: 44*time.Second + 500*time.Millisecond, Format: "a few seconds", DivBy: 1},
	{D: 90 * time.Second, Format: "a minute", DivBy: 1},
	{D: 44*time.Minute + 30*time.Second, Format: "%d minutes", DivBy: time.Minute},
	{D: 90 * time.Minute, Format: "an hour", DivBy: 1},
	{D: 21*time.Hour + 30*time.Minute, Format: "%d hours", DivBy: time.Hour},
	{D: 36 * time.Hour, Format: "a day", DivBy: 1},
	{D: 25*day + 12*time.Hour, Format: "%d days", DivBy: day},
	{D: month + month/2, Format: "a month", DivBy: 1},
	{D: 10*month + month/2, Format: "%d months", DivBy: month},
	{D: year + year/2, Format: "a year", DivBy: 1},
	{D: math.MaxInt64, Format: "%d years", DivBy: year},
}

// roundingUnit is the unit a distance is rounded to before it is named, so
// 2h40m reads as "3 hours" rather than being truncated.
func roundingUnit(d time.Duration) time.Duration {
	switch {
	case d < 90*time.Second:
		return time.Second
	case d < 90*time.Minute:
		return time.Minute
	case d < 36*time.Hour:
		return time.Hour
	case d < 25*day+12*time.Hour:
		return day
	case d < 10*month+month/2:
		return month
	default:
		return year
	}
}

// Label returns the display label of a data key.
func Label(key string) string {
	if l, ok := keyLabels[key]; ok {
		return l
	}
	// Casers keep state and cannot be shared between goroutines.
	caser := cases.Title(language.English, cases.NoLower)
	words := splitWords(key)
	for i, w := range words {
		words[i] = caser.String(w)
	}
	return strings.Join(words, " ")
}

// splitWords breaks snake, kebab and camel case keys into words.
func splitWords(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
			continue
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			flush()
		}
		cur = append(cur, r)
	}
	flush()
	return words
}
