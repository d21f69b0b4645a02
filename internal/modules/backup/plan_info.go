package backup

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/backup"

	"github.com/stackmill/awsmod/internal/awserr"
	"github.com/stackmill/awsmod/internal/awsutil"
	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
)

// PlanInfoAPI is the slice of the Backup API the plan info module uses.
type PlanInfoAPI interface {
	backup.ListBackupPlansAPIClient
	GetBackupPlan(ctx context.Context, params *backup.GetBackupPlanInput, optFns ...func(*backup.Options)) (*backup.GetBackupPlanOutput, error)
	ListTags(ctx context.Context, params *backup.ListTagsInput, optFns ...func(*backup.Options)) (*backup.ListTagsOutput, error)
}

// PlanInfoModule reports backup plans with their rules and tags.
type PlanInfoModule struct {
	api PlanInfoAPI
}

func NewPlanInfoModule() *PlanInfoModule { return &PlanInfoModule{} }

func (m *PlanInfoModule) Name() string { return "backup_plan_info" }

func (m *PlanInfoModule) Summary() string {
	return "Describe AWS Backup plans"
}

func (m *PlanInfoModule) Doc() string {
	return `# backup_plan_info

Lists backup plans and fetches each plan's full rule set and tags. Never changes
anything.

## Parameters

- ` + "`backup_plan_names`" + `: restrict to specific plan names

## Returns

` + "`backup_plans`" + `: list of plan dictionaries with ` + "`rules`" + ` and ` + "`tags`" + `.
`
}

func (m *PlanInfoModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"backup_plan_names": {Type: module.TypeList},
		},
	}, client.CommonParams())
}

func (m *PlanInfoModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := m.resolveAPI(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	wanted := map[string]bool{}
	for _, name := range req.Params.StringList("backup_plan_names") {
		wanted[name] = true
	}

	plans := []map[string]any{}
	paginator := backup.NewListBackupPlansPaginator(api, &backup.ListBackupPlansInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if awserr.IsNotFound(err) {
				break
			}
			return nil, fmt.Errorf("failed to list backup plans: %w", err)
		}

		for _, summary := range page.BackupPlansList {
			if len(wanted) > 0 && !wanted[aws.ToString(summary.BackupPlanName)] {
				continue
			}

			plan, err := api.GetBackupPlan(ctx, &backup.GetBackupPlanInput{
				BackupPlanId: summary.BackupPlanId,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to get backup plan %s: %w", aws.ToString(summary.BackupPlanName), err)
			}

			dict, err := awsutil.SnakeDict(plan.BackupPlan)
			if err != nil {
				return nil, err
			}
			dict["backup_plan_id"] = aws.ToString(plan.BackupPlanId)
			dict["backup_plan_arn"] = aws.ToString(plan.BackupPlanArn)
			dict["version_id"] = aws.ToString(plan.VersionId)

			listed, err := api.ListTags(ctx, &backup.ListTagsInput{ResourceArn: plan.BackupPlanArn})
			if err != nil {
				return nil, fmt.Errorf("failed to list tags for backup plan %s: %w", aws.ToString(summary.BackupPlanName), err)
			}
			dict["tags"] = listed.Tags

			plans = append(plans, dict)
		}
	}

	return (&module.Result{}).Set("backup_plans", plans), nil
}

func (m *PlanInfoModule) resolveAPI(ctx context.Context, params module.Params) (PlanInfoAPI, error) {
	if m.api != nil {
		return m.api, nil
	}
	cfg, err := client.LoadConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return backup.NewFromConfig(cfg), nil
}
