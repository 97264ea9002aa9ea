package receipt

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Role selects the face a line is drawn with.
type Role int

const (
	RoleBody Role = iota
	RoleEmphasis
	RoleTitle
	RoleHeader
	RoleTotal
)

// FontProfile is a set of pixel sizes, one per role.
type FontProfile struct {
	Body     float64
	Emphasis float64
	Title    float64
	Header   float64
	Total    float64
}

func (p FontProfile) size(r Role) float64 {
	switch r {
	case RoleEmphasis:
		return p.Emphasis
	case RoleTitle:
		return p.Title
	case RoleHeader:
		return p.Header
	case RoleTotal:
		return p.Total
	default:
		return p.Body
	}
}

var profiles = map[string]FontProfile{
	"small":  {Body: 14, Emphasis: 18, Title: 22, Header: 12, Total: 20},
	"normal": {Body: 18, Emphasis: 22, Title: 28, Header: 16, Total: 26},
	"large":  {Body: 22, Emphasis: 26, Title: 32, Header: 20, Total: 30},
	"extra":  {Body: 26, Emphasis: 30, Title: 36, Header: 24, Total: 34},
}

var profileAliases = map[string]string{
	"pequeno": "small",
	"grande":  "large",
}

// LookupProfile resolves a profile name, accepting the legacy aliases.
func LookupProfile(name string) (FontProfile, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := profileAliases[key]; ok {
		key = alias
	}
	p, ok := profiles[key]
	if !ok {
		return FontProfile{}, fmt.Errorf("%w: %q", ErrUnknownFontProfile, name)
	}
	return p, nil
}

var (
	fontsOnce   sync.Once
	regularFont *opentype.Font
	boldFont    *opentype.Font
	fontsErr    error
)

func loadFonts() error {
	fontsOnce.Do(func() {
		if regularFont, fontsErr = opentype.Parse(goregular.TTF); fontsErr != nil {
			return
		}
		boldFont, fontsErr = opentype.Parse(gobold.TTF)
	})
	return fontsErr
}

// faceSet holds one face per role. Faces are not safe for concurrent use,
// so every render builds its own set.
type faceSet map[Role]font.Face

func newFaceSet(p FontProfile) (faceSet, error) {
	if err := loadFonts(); err != nil {
		return nil, fmt.Errorf("load fonts: %w", err)
	}
	set := make(faceSet, 5)
	for _, r := range []Role{RoleBody, RoleEmphasis, RoleTitle, RoleHeader, RoleTotal} {
		f := regularFont
		if r == RoleEmphasis || r == RoleTitle || r == RoleTotal {
			f = boldFont
		}
		face, err := opentype.NewFace(f, &opentype.FaceOptions{
			Size:    p.size(r),
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("new face: %w", err)
		}
		set[r] = face
	}
	return set, nil
}

func (s faceSet) Close() {
	for _, f := range s {
		f.Close()
	}
}
