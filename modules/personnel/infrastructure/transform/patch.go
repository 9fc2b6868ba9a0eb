package transform

import (
	"context"
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/go-faster/errors"
)

// PatchScript applies a fixed RFC 6902 patch.
type PatchScript struct {
	name  string
	patch jsonpatch.Patch
}

func NewPatchScript(name string, raw []byte) (*PatchScript, error) {
	p, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "decode json patch %s", name)
	}
	return &PatchScript{name: name, patch: p}, nil
}

func (s *PatchScript) Name() string { return s.name }

func (s *PatchScript) Apply(_ context.Context, doc map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "encode document")
	}
	opts := jsonpatch.NewApplyOptions()
	opts.EnsurePathExistsOnAdd = true
	opts.AllowMissingPathOnRemove = true
	patched, err := s.patch.ApplyWithOptions(raw, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "apply json patch %s", s.name)
	}
	var out map[string]any
	if err := json.Unmarshal(patched, &out); err != nil {
		return nil, errors.Wrap(err, "decode patched document")
	}
	return out, nil
}
