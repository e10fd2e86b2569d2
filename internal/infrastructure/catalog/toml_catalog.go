package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"repairdesk/internal/errs"
	"repairdesk/internal/ports"
)

const catalogVersion = 1

type partEntry struct {
	Code        string `toml:"code"`
	Description string `toml:"description"`
	Parent      string `toml:"parent"`
}

type catalogFile struct {
	Version int         `toml:"version"`
	Parts   []partEntry `toml:"parts"`
}

type Part struct {
	Code        string
	Description string
	Parent      string
}

// Catalog is the warehouse parts list. An empty catalogue substitutes nothing
// and accepts every code; a loaded one rejects codes it does not list.
type Catalog struct {
	parts map[string]Part
}

var _ ports.PartCatalog = (*Catalog)(nil)

// Empty returns a catalogue without substitutions.
func Empty() *Catalog {
	return &Catalog{parts: map[string]Part{}}
}

// Load reads a TOML catalogue. An empty path yields Empty().
func Load(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Empty(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(err, "read parts catalogue %s", path)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Catalog, error) {
	var file catalogFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil, errs.Wrap(err, "decode parts catalogue")
	}
	if file.Version != catalogVersion {
		return nil, fmt.Errorf("unsupported parts catalogue version %d: expected version = %d", file.Version, catalogVersion)
	}

	parts := make(map[string]Part, len(file.Parts))
	for i, entry := range file.Parts {
		code := strings.TrimSpace(entry.Code)
		if code == "" {
			return nil, fmt.Errorf("parts[%d].code is required", i)
		}
		if _, dup := parts[code]; dup {
			return nil, fmt.Errorf("parts[%d]: duplicate code %s", i, code)
		}
		parent := strings.TrimSpace(entry.Parent)
		if parent == code {
			return nil, fmt.Errorf("parts[%d]: %s cannot be its own parent", i, code)
		}
		parts[code] = Part{
			Code:        code,
			Description: strings.TrimSpace(entry.Description),
			Parent:      parent,
		}
	}

	for code, part := range parts {
		if part.Parent == "" {
			continue
		}
		if parent, ok := parts[part.Parent]; ok && parent.Parent != "" {
			return nil, errors.New("parent codes must not chain: " + code + " -> " + part.Parent + " -> " + parent.Parent)
		}
	}
	return &Catalog{parts: parts}, nil
}

func (c *Catalog) ParentCode(ctx context.Context, code string) (string, bool, error) {
	if ctx == nil {
		return "", false, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", false, errs.Wrap(err, "check context")
	}

	code = strings.TrimSpace(code)
	if len(c.parts) == 0 {
		return "", false, nil
	}
	part, ok := c.parts[code]
	if !ok {
		return "", false, errs.NotFound("part", code)
	}
	if part.Parent == "" {
		return "", false, nil
	}
	return part.Parent, true, nil
}

func (c *Catalog) Lookup(code string) (Part, bool) {
	part, ok := c.parts[strings.TrimSpace(code)]
	return part, ok
}

// Parts lists the catalogue sorted by code.
func (c *Catalog) Parts() []Part {
	out := make([]Part, 0, len(c.parts))
	for _, part := range c.parts {
		out = append(out, part)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
