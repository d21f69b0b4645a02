package lightsail

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lightsail"
	"github.com/aws/aws-sdk-go-v2/service/lightsail/types"

	"github.com/stackmill/awsmod/internal/awserr"
	"github.com/stackmill/awsmod/internal/awsutil"
	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
)

// InstanceAPI is the slice of the Lightsail API the instance module uses.
type InstanceAPI interface {
	GetInstance(ctx context.Context, params *lightsail.GetInstanceInput, optFns ...func(*lightsail.Options)) (*lightsail.GetInstanceOutput, error)
	CreateInstances(ctx context.Context, params *lightsail.CreateInstancesInput, optFns ...func(*lightsail.Options)) (*lightsail.CreateInstancesOutput, error)
	DeleteInstance(ctx context.Context, params *lightsail.DeleteInstanceInput, optFns ...func(*lightsail.Options)) (*lightsail.DeleteInstanceOutput, error)
	StartInstance(ctx context.Context, params *lightsail.StartInstanceInput, optFns ...func(*lightsail.Options)) (*lightsail.StartInstanceOutput, error)
	StopInstance(ctx context.Context, params *lightsail.StopInstanceInput, optFns ...func(*lightsail.Options)) (*lightsail.StopInstanceOutput, error)
	RebootInstance(ctx context.Context, params *lightsail.RebootInstanceInput, optFns ...func(*lightsail.Options)) (*lightsail.RebootInstanceOutput, error)
}

// InstanceModule manages a Lightsail instance through its full lifecycle.
type InstanceModule struct {
	api InstanceAPI

	// pollInterval is shortened in tests.
	pollInterval time.Duration
}

func NewInstanceModule() *InstanceModule {
	return &InstanceModule{pollInterval: 5 * time.Second}
}

func (m *InstanceModule) Name() string { return "lightsail_instance" }

func (m *InstanceModule) Summary() string {
	return "Create, delete, start, stop and reboot Lightsail instances"
}

func (m *InstanceModule) Doc() string {
	return `# lightsail_instance

Manages a Lightsail instance. States present and absent create and delete; running,
stopped and rebooted drive the power state of an existing instance.

## Parameters

- ` + "`name`" + `: the instance name (required)
- ` + "`state`" + `: present, absent, running, stopped or rebooted (default present)
- ` + "`zone`" + `: availability zone; required to create
- ` + "`blueprint_id`" + `: OS or app image; required to create
- ` + "`bundle_id`" + `: instance size; required to create
- ` + "`key_pair_name`" + `: Lightsail key pair for SSH
- ` + "`user_data`" + `: launch script
- ` + "`wait`" + ` / ` + "`wait_timeout`" + `: wait for the instance to reach running after create or start

## Returns

` + "`instance`" + `: the instance dictionary after the change.
`
}

func (m *InstanceModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"name":          {Type: module.TypeStr, Required: true},
			"state":         {Type: module.TypeStr, Default: "present", Choices: []string{"present", "absent", "running", "stopped", "rebooted"}},
			"zone":          {Type: module.TypeStr, Aliases: []string{"availability_zone"}},
			"blueprint_id":  {Type: module.TypeStr},
			"bundle_id":     {Type: module.TypeStr},
			"key_pair_name": {Type: module.TypeStr},
			"user_data":     {Type: module.TypeStr},
			"wait":          {Type: module.TypeBool, Default: true},
			"wait_timeout":  {Type: module.TypeInt, Default: 300},
		},
	}, client.CommonParams())
}

func (m *InstanceModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := m.resolveAPI(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	name := req.Params.String("name")
	existing, err := findInstance(ctx, api, name)
	if err != nil {
		return nil, err
	}

	switch req.Params.String("state") {
	case "absent":
		return m.delete(ctx, api, req, existing)
	case "present":
		return m.create(ctx, api, req, existing)
	case "running":
		return m.start(ctx, api, req, existing)
	case "stopped":
		return m.stop(ctx, api, req, existing)
	default:
		return m.reboot(ctx, api, req, existing)
	}
}

func (m *InstanceModule) create(ctx context.Context, api InstanceAPI, req *module.Request, existing *types.Instance) (*module.Result, error) {
	if existing != nil {
		return instanceResult(existing, false)
	}

	name := req.Params.String("name")
	for _, key := range []string{"zone", "blueprint_id", "bundle_id"} {
		if req.Params.String(key) == "" {
			return nil, fmt.Errorf("%s is required to create instance %s", key, name)
		}
	}
	if req.CheckMode {
		return &module.Result{Changed: true}, nil
	}

	input := &lightsail.CreateInstancesInput{
		InstanceNames:    []string{name},
		AvailabilityZone: aws.String(req.Params.String("zone")),
		BlueprintId:      aws.String(req.Params.String("blueprint_id")),
		BundleId:         aws.String(req.Params.String("bundle_id")),
	}
	if v := req.Params.String("key_pair_name"); v != "" {
		input.KeyPairName = aws.String(v)
	}
	if v := req.Params.String("user_data"); v != "" {
		input.UserData = aws.String(v)
	}
	if _, err := api.CreateInstances(ctx, input); err != nil {
		return nil, fmt.Errorf("failed to create instance %s: %w", name, err)
	}

	instance, err := m.waitForState(ctx, api, req, name, "running")
	if err != nil {
		return nil, err
	}
	return instanceResult(instance, true)
}

func (m *InstanceModule) delete(ctx context.Context, api InstanceAPI, req *module.Request, existing *types.Instance) (*module.Result, error) {
	if existing == nil {
		return &module.Result{}, nil
	}
	if req.CheckMode {
		return &module.Result{Changed: true}, nil
	}
	if _, err := api.DeleteInstance(ctx, &lightsail.DeleteInstanceInput{
		InstanceName: existing.Name,
	}); err != nil {
		return nil, fmt.Errorf("failed to delete instance %s: %w", aws.ToString(existing.Name), err)
	}
	return &module.Result{Changed: true}, nil
}

func (m *InstanceModule) start(ctx context.Context, api InstanceAPI, req *module.Request, existing *types.Instance) (*module.Result, error) {
	if existing == nil {
		return nil, fmt.Errorf("instance %s does not exist", req.Params.String("name"))
	}
	if instanceState(existing) == "running" {
		return instanceResult(existing, false)
	}
	if req.CheckMode {
		return &module.Result{Changed: true}, nil
	}

	if _, err := api.StartInstance(ctx, &lightsail.StartInstanceInput{
		InstanceName: existing.Name,
	}); err != nil {
		return nil, fmt.Errorf("failed to start instance %s: %w", aws.ToString(existing.Name), err)
	}

	instance, err := m.waitForState(ctx, api, req, aws.ToString(existing.Name), "running")
	if err != nil {
		return nil, err
	}
	return instanceResult(instance, true)
}

func (m *InstanceModule) stop(ctx context.Context, api InstanceAPI, req *module.Request, existing *types.Instance) (*module.Result, error) {
	if existing == nil {
		return nil, fmt.Errorf("instance %s does not exist", req.Params.String("name"))
	}
	if instanceState(existing) == "stopped" {
		return instanceResult(existing, false)
	}
	if req.CheckMode {
		return &module.Result{Changed: true}, nil
	}

	if _, err := api.StopInstance(ctx, &lightsail.StopInstanceInput{
		InstanceName: existing.Name,
	}); err != nil {
		return nil, fmt.Errorf("failed to stop instance %s: %w", aws.ToString(existing.Name), err)
	}

	instance, err := m.waitForState(ctx, api, req, aws.ToString(existing.Name), "stopped")
	if err != nil {
		return nil, err
	}
	return instanceResult(instance, true)
}

func (m *InstanceModule) reboot(ctx context.Context, api InstanceAPI, req *module.Request, existing *types.Instance) (*module.Result, error) {
	if existing == nil {
		return nil, fmt.Errorf("instance %s does not exist", req.Params.String("name"))
	}
	if req.CheckMode {
		return &module.Result{Changed: true}, nil
	}

	if _, err := api.RebootInstance(ctx, &lightsail.RebootInstanceInput{
		InstanceName: existing.Name,
	}); err != nil {
		return nil, fmt.Errorf("failed to reboot instance %s: %w", aws.ToString(existing.Name), err)
	}

	instance, err := m.waitForState(ctx, api, req, aws.ToString(existing.Name), "running")
	if err != nil {
		return nil, err
	}
	return instanceResult(instance, true)
}

// waitForState polls GetInstance until the power state matches. Lightsail has no SDK
// waiters, so polling is the only option.
func (m *InstanceModule) waitForState(ctx context.Context, api InstanceAPI, req *module.Request, name, want string) (*types.Instance, error) {
	instance, err := findInstance(ctx, api, name)
	if err != nil {
		return nil, err
	}
	if !req.Params.Bool("wait") {
		return instance, nil
	}

	deadline := time.Now().Add(time.Duration(req.Params.Int("wait_timeout")) * time.Second)
	for {
		if instance != nil && instanceState(instance) == want {
			return instance, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for instance %s to reach %s", name, want)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.pollInterval):
		}

		instance, err = findInstance(ctx, api, name)
		if err != nil {
			return nil, err
		}
	}
}

func instanceState(instance *types.Instance) string {
	if instance.State == nil {
		return ""
	}
	return aws.ToString(instance.State.Name)
}

func instanceResult(instance *types.Instance, changed bool) (*module.Result, error) {
	result := &module.Result{Changed: changed}
	if instance != nil {
		dict, err := awsutil.SnakeDict(instance)
		if err != nil {
			return nil, err
		}
		result.Set("instance", dict)
	}
	return result, nil
}

func findInstance(ctx context.Context, api InstanceAPI, name string) (*types.Instance, error) {
	output, err := api.GetInstance(ctx, &lightsail.GetInstanceInput{InstanceName: aws.String(name)})
	if err != nil {
		if awserr.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get instance %s: %w", name, err)
	}
	return output.Instance, nil
}

func (m *InstanceModule) resolveAPI(ctx context.Context, params module.Params) (InstanceAPI, error) {
	if m.api != nil {
		return m.api, nil
	}
	cfg, err := client.LoadConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return lightsail.NewFromConfig(cfg), nil
}
