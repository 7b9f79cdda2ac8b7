package llm

import (
	"errors"
	"os"
)

const defaultAzureAPIVersion = "2024-06-01"

// Credentials holds the secrets for every backend. Callers inject them explicitly;
// nothing in this package reads the process environment on its own.
type Credentials struct {
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AzureAPIKey     string `yaml:"azure_api_key"`
	AzureEndpoint   string `yaml:"azure_endpoint"`
	AzureAPIVersion string `yaml:"azure_api_version"`
}

// CredentialsFromEnv reads the conventional OpenAI/Azure environment variables.
// Intended for command-line glue.
func CredentialsFromEnv() Credentials {
	return Credentials{
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AzureAPIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
		AzureEndpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
		AzureAPIVersion: os.Getenv("OPENAI_API_VERSION"),
	}
}

// Check returns an authentication error when the pair needed by backend is incomplete
func (c Credentials) Check(backend Backend) error {
	switch backend {
	case BackendOpenAI:
		if c.OpenAIAPIKey == "" {
			return &Error{Kind: KindAuthentication, Backend: backend, Err: errors.New("OpenAI API key is not set")}
		}
	case BackendAzure:
		if c.AzureAPIKey == "" {
			return &Error{Kind: KindAuthentication, Backend: backend, Err: errors.New("Azure OpenAI API key is not set")}
		}
		if c.AzureEndpoint == "" {
			return &Error{Kind: KindAuthentication, Backend: backend, Err: errors.New("Azure OpenAI endpoint is not set")}
		}
	default:
		return &Error{Kind: KindInvalidRequest, Backend: backend, Err: errors.New("unknown backend")}
	}
	return nil
}

func (c Credentials) azureAPIVersion() string {
	if c.AzureAPIVersion != "" {
		return c.AzureAPIVersion
	}
	return defaultAzureAPIVersion
}
