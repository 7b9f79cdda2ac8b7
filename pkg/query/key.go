package query

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/dan-solli/airesponse/pkg/llm"
)

// keyVersion changes whenever the key material layout changes, so old entries
// stop matching instead of being misread
const keyVersion = 1

type keyPrompt struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// keyMaterial is the canonical form hashed into a cache key. Field order is
// fixed by the struct and encoding/json sorts the options map.
type keyMaterial struct {
	Version int            `json:"v"`
	System  string         `json:"system"`
	Prompts []keyPrompt    `json:"prompts"`
	Model   string         `json:"model"`
	Backend llm.Backend    `json:"backend"`
	Options map[string]any `json:"options"`
}

// prepared is a validated request with images resolved and its key computed
type prepared struct {
	req    Request
	images []resolvedImage
	key    string
}

func prepare(req Request, defaults map[string]any) (*prepared, error) {
	req = req.normalize(defaults)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p := &prepared{req: req, images: make([]resolvedImage, len(req.UserPrompts))}
	material := keyMaterial{
		Version: keyVersion,
		System:  req.SystemPrompt,
		Prompts: make([]keyPrompt, len(req.UserPrompts)),
		Model:   req.Model,
		Backend: req.Backend,
		Options: req.Options,
	}

	for i, prompt := range req.UserPrompts {
		img, err := resolveImage(prompt.Image)
		if err != nil {
			return nil, err
		}
		p.images[i] = img
		material.Prompts[i] = keyPrompt{Text: prompt.Text, Image: img.Digest}
	}

	data, err := json.Marshal(material)
	if err != nil {
		return nil, llm.NewError(llm.KindInvalidRequest, fmt.Errorf("options are not serializable: %w", err))
	}
	sum := sha256.Sum256(data)
	p.key = hex.EncodeToString(sum[:])
	return p, nil
}

// Key returns the cache key for req after defaults are applied. Equal
// requests always produce the same key; prompt order matters.
func Key(req Request) (string, error) {
	p, err := prepare(req, DefaultOptions())
	if err != nil {
		return "", err
	}
	return p.key, nil
}
