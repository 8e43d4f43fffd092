// Copyright (c) Microsoft. All rights reserved.

package agentframework

// FunctionDeclaration describes a function the model may ask the caller to
// run. The agent never executes it: a call surfaces as a
// [FunctionCallContent], the host pauses with an interrupt, and the caller
// resumes with the result.
type FunctionDeclaration struct {
	Name        string
	Description string

	// Parameters is the JSON Schema of the function's arguments.
	Parameters *Schema
}

// DeclareFunction builds a [FunctionDeclaration] whose parameter schema is
// derived from the Args struct type.
//
// Field names follow the json tag. Use the `jsonschema` struct tag for
// additional metadata:
//
//	type WeatherArgs struct {
//	    Location string `json:"location" jsonschema:"description=City name,required"`
//	    Unit     string `json:"unit"     jsonschema:"enum=celsius|fahrenheit"`
//	}
func DeclareFunction[Args any](name, description string) FunctionDeclaration {
	return FunctionDeclaration{
		Name:        name,
		Description: description,
		Parameters:  SchemaFor[Args](),
	}
}
