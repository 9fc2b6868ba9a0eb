package transform

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"github.com/wI2L/jsondiff"
)

// Chain holds the ordered scripts of every organisation.
type Chain struct {
	mu      sync.RWMutex
	scripts map[string][]Script
	logger  *logrus.Entry
}

func NewChain(logger *logrus.Entry) *Chain {
	if logger == nil {
		logger = logrusNop()
	}
	return &Chain{scripts: map[string][]Script{}, logger: logger}
}

func (c *Chain) Set(orgID string, scripts []Script) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts[orgID] = append([]Script(nil), scripts...)
}

func (c *Chain) Scripts(orgID string) []Script {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Script(nil), c.scripts[orgID]...)
}

// Transform applies the organisation's scripts in order. A failing script is skipped and
// the remaining ones still run; the returned error joins every failure.
func (c *Chain) Transform(ctx context.Context, orgID string, doc map[string]any) (map[string]any, error) {
	var errs []error
	for _, s := range c.Scripts(orgID) {
		out, err := s.Apply(ctx, cloneDocument(doc))
		if err != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{"org_id": orgID, "script": s.Name()}).Error("transformation script failed")
			errs = append(errs, errors.Wrapf(err, "script %s", s.Name()))
			continue
		}
		c.logDiff(orgID, s.Name(), doc, out)
		doc = out
	}
	return doc, errors.Join(errs...)
}

func (c *Chain) logDiff(orgID, script string, before, after map[string]any) {
	if !c.logger.Logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	patch, err := jsondiff.Compare(before, after)
	if err != nil {
		return
	}
	raw, _ := json.Marshal(patch)
	c.logger.WithFields(logrus.Fields{
		"org_id": orgID,
		"script": script,
		"patch":  string(raw),
	}).Debug("transformation applied")
}

func cloneDocument(doc map[string]any) map[string]any {
	raw, err := json.Marshal(doc)
	if err != nil {
		return doc
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return doc
	}
	return out
}

func logrusNop() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}
