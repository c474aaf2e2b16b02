// Package worker runs the poll -> claim -> execute -> heartbeat loop that
// turns a claimed job into a loader.Runner invocation: claiming over HTTP
// from the coordinator, everything else (status transitions, checkpoints,
// heartbeats, data-quality issues, propose-fact calls) against this
// process's own database connection, mirroring the dual-channel split
// distributed_worker.py used between its Cloudflare HTTP client and its
// direct Aurora connection.
package worker

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/lexara-six/ingestion/internal/domain"
)

// ResolveAWSConfig builds the aws.Config this worker uses for S3 input
// downloads and CloudWatch Logs shipping. Unlike distributed_worker.py's
// _get_aurora_credentials (which fetched Postgres credentials from Secrets
// Manager with an environment-variable fallback), database credentials here
// always come from config.Config's DB_* fields; this resolver only ever
// hands out AWS credentials. When roleARN is set it assumes that role via
// STS on top of whatever ambient credentials are available (instance
// profile, env vars, shared config); otherwise it returns the ambient
// chain unchanged.
func ResolveAWSConfig(ctx domain.Context, region, profile, roleARN string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	base, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("op=worker.resolve_aws_config.load_default: %w", err)
	}

	if roleARN == "" {
		return base, nil
	}

	stsClient := sts.NewFromConfig(base)
	provider := stscreds.NewAssumeRoleProvider(stsClient, roleARN)
	assumed := base.Copy()
	assumed.Credentials = aws.NewCredentialsCache(provider)

	if _, err := assumed.Credentials.Retrieve(ctx); err != nil {
		return aws.Config{}, fmt.Errorf("op=worker.resolve_aws_config.assume_role: role %q: %w", roleARN, err)
	}

	return assumed, nil
}
