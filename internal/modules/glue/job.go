package glue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/glue/types"

	"github.com/stackmill/awsmod/internal/awserr"
	"github.com/stackmill/awsmod/internal/awsutil"
	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
)

// JobAPI is the slice of the Glue API the job module uses.
type JobAPI interface {
	GetJob(ctx context.Context, params *glue.GetJobInput, optFns ...func(*glue.Options)) (*glue.GetJobOutput, error)
	CreateJob(ctx context.Context, params *glue.CreateJobInput, optFns ...func(*glue.Options)) (*glue.CreateJobOutput, error)
	UpdateJob(ctx context.Context, params *glue.UpdateJobInput, optFns ...func(*glue.Options)) (*glue.UpdateJobOutput, error)
	DeleteJob(ctx context.Context, params *glue.DeleteJobInput, optFns ...func(*glue.Options)) (*glue.DeleteJobOutput, error)
}

// JobModule manages a Glue ETL job definition.
type JobModule struct {
	api JobAPI
}

func NewJobModule() *JobModule { return &JobModule{} }

func (m *JobModule) Name() string { return "glue_job" }

func (m *JobModule) Summary() string {
	return "Create, update and delete Glue jobs"
}

func (m *JobModule) Doc() string {
	return `# glue_job

Manages a Glue job definition. Updates replace the whole job definition, so the module
diffs the fields it manages before calling UpdateJob.

## Parameters

- ` + "`name`" + `: the job name (required)
- ` + "`state`" + `: present or absent (default present)
- ` + "`role`" + `: IAM role the job runs as; required to create
- ` + "`command_script_location`" + `: S3 path of the job script; required to create
- ` + "`command_name`" + `: job command, e.g. glueetl or pythonshell (default glueetl)
- ` + "`glue_version`" + `: Glue runtime version
- ` + "`max_retries`" + `: retry attempts per run
- ` + "`timeout`" + `: run timeout in minutes
- ` + "`default_arguments`" + `: job arguments passed to every run
- ` + "`description`" + `: job description

## Returns

` + "`job`" + `: the job dictionary after the change.
`
}

func (m *JobModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"name":                    {Type: module.TypeStr, Required: true},
			"state":                   {Type: module.TypeStr, Default: "present", Choices: []string{"present", "absent"}},
			"role":                    {Type: module.TypeStr},
			"command_script_location": {Type: module.TypeStr},
			"command_name":            {Type: module.TypeStr, Default: "glueetl", Choices: []string{"glueetl", "pythonshell", "gluestreaming"}},
			"glue_version":            {Type: module.TypeStr},
			"max_retries":             {Type: module.TypeInt},
			"timeout":                 {Type: module.TypeInt},
			"default_arguments":       {Type: module.TypeDict},
			"description":             {Type: module.TypeStr},
		},
		RequiredIf: []module.RequiredIf{
			{Key: "state", Value: "present", Requires: []string{"role", "command_script_location"}},
		},
	}, client.CommonParams())
}

func (m *JobModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := m.resolveAPI(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	name := req.Params.String("name")
	existing, err := findJob(ctx, api, name)
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
		if _, err := api.DeleteJob(ctx, &glue.DeleteJobInput{JobName: aws.String(name)}); err != nil {
			return nil, fmt.Errorf("failed to delete job %s: %w", name, err)
		}
		return &module.Result{Changed: true}, nil
	}

	update := m.buildJobUpdate(req.Params)

	result := &module.Result{}
	if existing == nil {
		result.Changed = true
		if req.CheckMode {
			return result, nil
		}
		if _, err := api.CreateJob(ctx, &glue.CreateJobInput{
			Name:             aws.String(name),
			Role:             update.Role,
			Command:          update.Command,
			GlueVersion:      update.GlueVersion,
			MaxRetries:       update.MaxRetries,
			Timeout:          update.Timeout,
			DefaultArguments: update.DefaultArguments,
			Description:      update.Description,
		}); err != nil {
			return nil, fmt.Errorf("failed to create job %s: %w", name, err)
		}
	} else if jobDrifted(existing, update) {
		result.Changed = true
		if req.CheckMode {
			return result, nil
		}
		if _, err := api.UpdateJob(ctx, &glue.UpdateJobInput{
			JobName:   aws.String(name),
			JobUpdate: update,
		}); err != nil {
			return nil, fmt.Errorf("failed to update job %s: %w", name, err)
		}
	}

	job, err := findJob(ctx, api, name)
	if err != nil {
		return nil, err
	}
	if job != nil {
		dict, err := awsutil.SnakeDict(job)
		if err != nil {
			return nil, err
		}
		result.Set("job", dict)
	}
	return result, nil
}

func (m *JobModule) buildJobUpdate(params module.Params) *types.JobUpdate {
	update := &types.JobUpdate{
		Role: aws.String(params.String("role")),
		Command: &types.JobCommand{
			Name:           aws.String(params.String("command_name")),
			ScriptLocation: aws.String(params.String("command_script_location")),
		},
	}
	if v := params.String("glue_version"); v != "" {
		update.GlueVersion = aws.String(v)
	}
	if params.Has("max_retries") {
		update.MaxRetries = int32(params.Int("max_retries"))
	}
	if params.Has("timeout") {
		update.Timeout = aws.Int32(int32(params.Int("timeout")))
	}
	if args := params.StringMap("default_arguments"); len(args) > 0 {
		update.DefaultArguments = args
	}
	if v := params.String("description"); v != "" {
		update.Description = aws.String(v)
	}
	return update
}

func jobDrifted(current *types.Job, desired *types.JobUpdate) bool {
	if aws.ToString(current.Role) != aws.ToString(desired.Role) ||
		aws.ToString(current.GlueVersion) != aws.ToString(desired.GlueVersion) ||
		current.MaxRetries != desired.MaxRetries ||
		aws.ToString(current.Description) != aws.ToString(desired.Description) {
		return true
	}
	if desired.Timeout != nil && aws.ToInt32(current.Timeout) != aws.ToInt32(desired.Timeout) {
		return true
	}

	if current.Command == nil ||
		aws.ToString(current.Command.Name) != aws.ToString(desired.Command.Name) ||
		aws.ToString(current.Command.ScriptLocation) != aws.ToString(desired.Command.ScriptLocation) {
		return true
	}

	for key, value := range desired.DefaultArguments {
		if current.DefaultArguments[key] != value {
			return true
		}
	}
	return false
}

func findJob(ctx context.Context, api JobAPI, name string) (*types.Job, error) {
	output, err := api.GetJob(ctx, &glue.GetJobInput{JobName: aws.String(name)})
	if err != nil {
		if awserr.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job %s: %w", name, err)
	}
	return output.Job, nil
}

func (m *JobModule) resolveAPI(ctx context.Context, params module.Params) (JobAPI, error) {
	if m.api != nil {
		return m.api, nil
	}
	cfg, err := client.LoadConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return glue.NewFromConfig(cfg), nil
}
