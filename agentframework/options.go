// Copyright (c) Microsoft. All rights reserved.

package agentframework

import "maps"

// ToolChoice controls how the model selects declared functions.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
	ToolChoiceNone     ToolChoice = "none"
)

// ChatOptions configures a single chat completion request.
// Pointer fields use nil to represent "unset" (use provider default).
type ChatOptions struct {
	ModelID      string
	Temperature  *float64
	TopP         *float64
	MaxTokens    *int
	Stop         []string
	Seed         *int
	Functions    []FunctionDeclaration
	ToolChoice   ToolChoice
	User         string
	Instructions string

	// Extra holds provider-specific options not covered by standard fields.
	Extra map[string]any
}

// MergeChatOptions produces a new ChatOptions by overlaying override values
// onto base. Nil or zero-value fields in override do not overwrite base.
// Functions are merged by name with override winning, instructions are
// concatenated, and Extra keys from override win.
func MergeChatOptions(base, override *ChatOptions) *ChatOptions {
	if base == nil {
		base = &ChatOptions{}
	}
	merged := *base
	merged.Functions = append([]FunctionDeclaration(nil), base.Functions...)
	merged.Extra = maps.Clone(base.Extra)
	if override == nil {
		return &merged
	}

	if override.ModelID != "" {
		merged.ModelID = override.ModelID
	}
	if override.Temperature != nil {
		merged.Temperature = override.Temperature
	}
	if override.TopP != nil {
		merged.TopP = override.TopP
	}
	if override.MaxTokens != nil {
		merged.MaxTokens = override.MaxTokens
	}
	if len(override.Stop) > 0 {
		merged.Stop = override.Stop
	}
	if override.Seed != nil {
		merged.Seed = override.Seed
	}
	if override.ToolChoice != "" {
		merged.ToolChoice = override.ToolChoice
	}
	if override.User != "" {
		merged.User = override.User
	}

	if override.Instructions != "" {
		if merged.Instructions != "" {
			merged.Instructions += "\n" + override.Instructions
		} else {
			merged.Instructions = override.Instructions
		}
	}

	for _, fn := range override.Functions {
		replaced := false
		for i := range merged.Functions {
			if merged.Functions[i].Name == fn.Name {
				merged.Functions[i] = fn
				replaced = true
				break
			}
		}
		if !replaced {
			merged.Functions = append(merged.Functions, fn)
		}
	}

	if len(override.Extra) > 0 {
		if merged.Extra == nil {
			merged.Extra = make(map[string]any, len(override.Extra))
		}
		maps.Copy(merged.Extra, override.Extra)
	}

	return &merged
}
