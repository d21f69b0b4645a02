package rds

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/stackmill/awsmod/internal/awserr"
	"github.com/stackmill/awsmod/internal/awsutil"
	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
)

// SnapshotAPI is the slice of the RDS API the snapshot module uses. It embeds the
// describe client so the availability waiter can run against it.
type SnapshotAPI interface {
	rds.DescribeDBSnapshotsAPIClient
	CreateDBSnapshot(ctx context.Context, params *rds.CreateDBSnapshotInput, optFns ...func(*rds.Options)) (*rds.CreateDBSnapshotOutput, error)
	CopyDBSnapshot(ctx context.Context, params *rds.CopyDBSnapshotInput, optFns ...func(*rds.Options)) (*rds.CopyDBSnapshotOutput, error)
	DeleteDBSnapshot(ctx context.Context, params *rds.DeleteDBSnapshotInput, optFns ...func(*rds.Options)) (*rds.DeleteDBSnapshotOutput, error)
}

// SnapshotModule creates, copies and deletes RDS DB snapshots.
type SnapshotModule struct {
	api SnapshotAPI
}

func NewSnapshotModule() *SnapshotModule { return &SnapshotModule{} }

func (m *SnapshotModule) Name() string { return "rds_snapshot" }

func (m *SnapshotModule) Summary() string {
	return "Create, copy and delete RDS DB snapshots"
}

func (m *SnapshotModule) Doc() string {
	return `# rds_snapshot

Manages manual DB snapshots.

## Parameters

- ` + "`db_snapshot_identifier`" + `: the snapshot to manage (required)
- ` + "`state`" + `: present or absent (default present)
- ` + "`db_instance_identifier`" + `: source instance; required to create
- ` + "`source_db_snapshot_identifier`" + `: copy from this snapshot instead of an instance
- ` + "`tags`" + `: tags applied on creation
- ` + "`wait`" + ` / ` + "`wait_timeout`" + `: block until the snapshot is available

## Returns

` + "`snapshot`" + `: the snapshot dictionary when present.
`
}

func (m *SnapshotModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"db_snapshot_identifier":        {Type: module.TypeStr, Required: true, Aliases: []string{"id", "snapshot_id"}},
			"state":                         {Type: module.TypeStr, Default: "present", Choices: []string{"present", "absent"}},
			"db_instance_identifier":        {Type: module.TypeStr, Aliases: []string{"instance_id"}},
			"source_db_snapshot_identifier": {Type: module.TypeStr, Aliases: []string{"source_id"}},
			"tags":                          {Type: module.TypeDict},
			"wait":                          {Type: module.TypeBool, Default: false},
			"wait_timeout":                  {Type: module.TypeInt, Default: 300},
		},
		MutuallyExclusive: [][]string{{"db_instance_identifier", "source_db_snapshot_identifier"}},
	}, client.CommonParams())
}

func (m *SnapshotModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := m.resolveAPI(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	snapshotID := req.Params.String("db_snapshot_identifier")
	existing, err := findSnapshot(ctx, api, snapshotID)
	if err != nil {
		return nil, err
	}

	if req.Params.String("state") == "absent" {
		if existing == nil {
			return &module.Result{}, nil
		}
		if req.CheckMode {
			return &module.Result{Changed: true}, nil
		}
		if _, err := api.DeleteDBSnapshot(ctx, &rds.DeleteDBSnapshotInput{
			DBSnapshotIdentifier: aws.String(snapshotID),
		}); err != nil {
			return nil, fmt.Errorf("failed to delete snapshot %s: %w", snapshotID, err)
		}
		return &module.Result{Changed: true}, nil
	}

	result := &module.Result{}

	if existing == nil {
		result.Changed = true
		if req.CheckMode {
			return result, nil
		}

		tags := awsutil.MapToTags[types.Tag](req.Params.StringMap("tags"))
		switch {
		case req.Params.Has("source_db_snapshot_identifier"):
			copied, err := api.CopyDBSnapshot(ctx, &rds.CopyDBSnapshotInput{
				SourceDBSnapshotIdentifier: aws.String(req.Params.String("source_db_snapshot_identifier")),
				TargetDBSnapshotIdentifier: aws.String(snapshotID),
				Tags:                       tags,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to copy snapshot: %w", err)
			}
			existing = copied.DBSnapshot
		case req.Params.Has("db_instance_identifier"):
			created, err := api.CreateDBSnapshot(ctx, &rds.CreateDBSnapshotInput{
				DBSnapshotIdentifier: aws.String(snapshotID),
				DBInstanceIdentifier: aws.String(req.Params.String("db_instance_identifier")),
				Tags:                 tags,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create snapshot %s: %w", snapshotID, err)
			}
			existing = created.DBSnapshot
		default:
			return nil, fmt.Errorf("snapshot %s does not exist and no source was given", snapshotID)
		}
	}

	if req.Params.Bool("wait") && !req.CheckMode {
		waiter := rds.NewDBSnapshotAvailableWaiter(api)
		timeout := time.Duration(req.Params.Int("wait_timeout")) * time.Second
		if err := waiter.Wait(ctx, &rds.DescribeDBSnapshotsInput{
			DBSnapshotIdentifier: aws.String(snapshotID),
		}, timeout); err != nil {
			return nil, fmt.Errorf("timed out waiting for snapshot %s: %w", snapshotID, err)
		}
	}

	dict, err := awsutil.SnakeDict(existing)
	if err != nil {
		return nil, err
	}
	result.Set("snapshot", dict)
	return result, nil
}

func (m *SnapshotModule) resolveAPI(ctx context.Context, params module.Params) (SnapshotAPI, error) {
	if m.api != nil {
		return m.api, nil
	}
	cfg, err := client.LoadConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return rds.NewFromConfig(cfg), nil
}

func findSnapshot(ctx context.Context, api SnapshotAPI, snapshotID string) (*types.DBSnapshot, error) {
	output, err := api.DescribeDBSnapshots(ctx, &rds.DescribeDBSnapshotsInput{
		DBSnapshotIdentifier: aws.String(snapshotID),
	})
	if err != nil {
		if awserr.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to describe snapshot %s: %w", snapshotID, err)
	}
	if len(output.DBSnapshots) == 0 {
		return nil, nil
	}
	return &output.DBSnapshots[0], nil
}
