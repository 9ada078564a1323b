// Package model defines the provider-neutral streaming chat capability
// (Model) together with a name-based Registry and an in-memory MockModel.
//
// Provider adapters live in subpackages (openai, anthropic, gemini, compat)
// and normalise vendor wire formats into Response chunks tagged with the
// answer or reasoning channel.
package model
