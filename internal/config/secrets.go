package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// loadAWSSecretsIntoEnv copies the keys of a JSON secret into the process
// environment. Nothing happens unless AWS_SECRET_ID is set.
func loadAWSSecretsIntoEnv() error {
	secretID := os.Getenv("AWS_SECRET_ID")
	if secretID == "" {
		return nil
	}
	overwrite := strings.EqualFold(os.Getenv("AWS_SECRETS_OVERWRITE"), "true")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var opts []func(*awsconfig.LoadOptions) error
	if region := os.Getenv("AWS_REGION"); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	out, err := secretsmanager.NewFromConfig(cfg).GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretID),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return fmt.Errorf("fetch secret %s: %w", secretID, err)
	}

	var payload string
	switch {
	case out.SecretString != nil:
		payload = *out.SecretString
	case len(out.SecretBinary) > 0:
		payload = string(out.SecretBinary)
	default:
		return fmt.Errorf("secret %s has no payload", secretID)
	}

	return applySecretPayload(payload, overwrite)
}

func applySecretPayload(payload string, overwrite bool) error {
	var kv map[string]any
	if err := json.Unmarshal([]byte(payload), &kv); err != nil {
		return fmt.Errorf("secret payload is not a JSON object: %w", err)
	}
	for k, v := range kv {
		if _, exists := os.LookupEnv(k); exists && !overwrite {
			continue
		}
		var s string
		switch tv := v.(type) {
		case string:
			s = tv
		default:
			s = fmt.Sprint(tv)
		}
		if err := os.Setenv(k, s); err != nil {
			return err
		}
	}
	return nil
}
