// Package prompts loads the chat prompt pairs embedded with the
// binary. Each YAML file holds a fixed system message and a user
// template rendered per request.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/finraglab/finrag/internal/core/domain"
)

//go:embed templates/*.yaml
var files embed.FS

type promptSpec struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// Template is one renderable prompt pair.
type Template struct {
	name   string
	system string
	user   *template.Template
}

func (t *Template) Render(data any) ([]domain.ChatMessage, error) {
	var buf bytes.Buffer
	if err := t.user.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render prompt %s: %w", t.name, err)
	}
	messages := make([]domain.ChatMessage, 0, 2)
	if t.system != "" {
		messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: t.system})
	}
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: buf.String()})
	return messages, nil
}

// Library holds every prompt the pipelines use.
type Library struct {
	QA       *Template
	Rerank   *Template
	Eval     *Template
	Metadata *Template
}

func Load() (*Library, error) {
	lib := &Library{}
	for name, dst := range map[string]**Template{
		"qa":       &lib.QA,
		"rerank":   &lib.Rerank,
		"eval":     &lib.Eval,
		"metadata": &lib.Metadata,
	} {
		tpl, err := load(name)
		if err != nil {
			return nil, err
		}
		*dst = tpl
	}
	return lib, nil
}

func load(name string) (*Template, error) {
	data, err := files.ReadFile("templates/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("read prompt %s: %w", name, err)
	}
	var spec promptSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w", name, err)
	}
	if strings.TrimSpace(spec.User) == "" {
		return nil, fmt.Errorf("prompt %s has no user template", name)
	}
	user, err := template.New(name).Option("missingkey=error").Parse(spec.User)
	if err != nil {
		return nil, fmt.Errorf("compile prompt %s: %w", name, err)
	}
	return &Template{
		name:   name,
		system: strings.TrimSpace(spec.System),
		user:   user,
	}, nil
}
