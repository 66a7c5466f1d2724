// Command credentials manages provider API keys stored in Postgres so the
// server binaries can run without keys in their environment.
//
//	credentials -provider openai -key sk-...
//	credentials -provider gemini -revoke
//	credentials -provider gemini -show
//	credentials -migrate
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"reelcraft/internal/infra"
	"reelcraft/internal/infra/credentials"
)

func main() {
	_ = godotenv.Load()

	var (
		keyFlag      string
		providerFlag string
		noteFlag     string
		revokeFlag   bool
		showFlag     bool
		migrateFlag  bool
	)
	flag.StringVar(&keyFlag, "key", "", "API key for the selected provider (falls back to environment)")
	flag.StringVar(&providerFlag, "provider", credentials.ProviderGemini, "provider to configure (gemini or openai)")
	flag.StringVar(&noteFlag, "note", "", "free-form note stored with the key")
	flag.BoolVar(&revokeFlag, "revoke", false, "revoke the stored key instead of setting one")
	flag.BoolVar(&showFlag, "show", false, "print a masked form of the stored key")
	flag.BoolVar(&migrateFlag, "migrate", false, "create the credentials table and exit")
	flag.Parse()

	provider := strings.TrimSpace(strings.ToLower(providerFlag))
	switch provider {
	case credentials.ProviderGemini, credentials.ProviderOpenAI:
	case "":
		provider = credentials.ProviderGemini
	default:
		fmt.Fprintf(os.Stderr, "unsupported provider %q\n", providerFlag)
		os.Exit(1)
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli", "credentials").With().Str("provider", provider).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	switch {
	case migrateFlag:
		if err := store.EnsureSchema(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		fmt.Println("provider_credentials table is ready")
	case showFlag:
		token, err := store.Token(ctx, provider)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read %s api key: %v\n", provider, err)
			os.Exit(1)
		}
		if token == "" {
			fmt.Printf("%s: no key stored\n", strings.ToUpper(provider))
			return
		}
		fmt.Printf("%s: %s\n", strings.ToUpper(provider), mask(token))
	case revokeFlag:
		if err := store.Revoke(ctx, provider); err != nil {
			fmt.Fprintf(os.Stderr, "failed to revoke %s api key: %v\n", provider, err)
			os.Exit(1)
		}
		fmt.Printf("%s API key revoked\n", strings.ToUpper(provider))
	default:
		key := strings.TrimSpace(keyFlag)
		if key == "" {
			switch provider {
			case credentials.ProviderOpenAI:
				key = cfg.OpenAIAPIKey
			default:
				key = cfg.GeminiAPIKey
			}
		}
		if key == "" {
			fmt.Fprintf(os.Stderr, "%s API key is required via -key or environment\n", strings.ToUpper(provider))
			os.Exit(1)
		}
		if err := store.SetToken(ctx, provider, key, noteFlag); err != nil {
			fmt.Fprintf(os.Stderr, "failed to persist %s api key: %v\n", provider, err)
			os.Exit(1)
		}
		fmt.Printf("%s API key stored successfully\n", strings.ToUpper(provider))
	}
}

func mask(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}
