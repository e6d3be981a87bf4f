package gesture

import (
	"fmt"

	"github.com/signsos/signstream-core/internal/config"
)

// Role classifies what a recognized label means to the commit rules.
type Role int

const (
	// RoleCharacter appends the label's text to the session buffer.
	RoleCharacter Role = iota
	// RoleSeparator inserts a word separator.
	RoleSeparator
	// RoleSend flushes the buffer to the dispatch gateway.
	RoleSend
	// RoleUnknown marks labels outside the configured vocabulary.
	RoleUnknown
)

func (r Role) String() string {
	switch r {
	case RoleCharacter:
		return "character"
	case RoleSeparator:
		return "separator"
	case RoleSend:
		return "send"
	default:
		return "unknown"
	}
}

// Vocabulary maps gesture labels to their roles. The lookup is built once
// from configuration so the commit rules never branch on raw label strings.
type Vocabulary struct {
	classes       []string
	roles         map[string]Role
	sendLabel     string
	separator     string
	separatorText string
}

func NewVocabulary(cfg config.VocabularyConfig) (*Vocabulary, error) {
	if len(cfg.Classes) == 0 {
		return nil, fmt.Errorf("vocabulary has no classes")
	}
	roles := make(map[string]Role, len(cfg.Classes))
	for _, class := range cfg.Classes {
		roles[class] = RoleCharacter
	}
	if _, ok := roles[cfg.SendLabel]; !ok {
		return nil, fmt.Errorf("send label %q is not a vocabulary class", cfg.SendLabel)
	}
	if _, ok := roles[cfg.SeparatorLabel]; !ok {
		return nil, fmt.Errorf("separator label %q is not a vocabulary class", cfg.SeparatorLabel)
	}
	roles[cfg.SendLabel] = RoleSend
	roles[cfg.SeparatorLabel] = RoleSeparator

	separatorText := cfg.SeparatorText
	if separatorText == "" {
		separatorText = " "
	}

	classes := append([]string(nil), cfg.Classes...)
	return &Vocabulary{
		classes:       classes,
		roles:         roles,
		sendLabel:     cfg.SendLabel,
		separator:     cfg.SeparatorLabel,
		separatorText: separatorText,
	}, nil
}

// Role returns the role of a label, RoleUnknown for labels outside the vocabulary.
func (v *Vocabulary) Role(label string) Role {
	if role, ok := v.roles[label]; ok {
		return role
	}
	return RoleUnknown
}

// Classes returns the configured class labels in their configured order.
func (v *Vocabulary) Classes() []string {
	return append([]string(nil), v.classes...)
}

func (v *Vocabulary) SendLabel() string      { return v.sendLabel }
func (v *Vocabulary) SeparatorLabel() string { return v.separator }

// SeparatorText is the text inserted into the buffer by a separator commit.
func (v *Vocabulary) SeparatorText() string { return v.separatorText }
