package wafv2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/wafv2"
	"github.com/aws/aws-sdk-go-v2/service/wafv2/types"

	"github.com/stackmill/awsmod/internal/awserr"
	"github.com/stackmill/awsmod/internal/awsutil"
	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
)

// WebACLInfoAPI is the slice of the WAFv2 API the web ACL info module uses.
type WebACLInfoAPI interface {
	ListWebACLs(ctx context.Context, params *wafv2.ListWebACLsInput, optFns ...func(*wafv2.Options)) (*wafv2.ListWebACLsOutput, error)
	GetWebACL(ctx context.Context, params *wafv2.GetWebACLInput, optFns ...func(*wafv2.Options)) (*wafv2.GetWebACLOutput, error)
}

// WebACLInfoModule reports WAFv2 web ACLs.
type WebACLInfoModule struct {
	api WebACLInfoAPI
}

func NewWebACLInfoModule() *WebACLInfoModule { return &WebACLInfoModule{} }

func (m *WebACLInfoModule) Name() string { return "wafv2_web_acl_info" }

func (m *WebACLInfoModule) Summary() string {
	return "Describe WAFv2 web ACLs"
}

func (m *WebACLInfoModule) Doc() string {
	return `# wafv2_web_acl_info

Lists web ACLs for a scope, or fetches one in full by name. ListWebACLs is not
paginator-backed in the SDK, so the module follows NextMarker by hand.

## Parameters

- ` + "`name`" + `: fetch this web ACL in full, including its rules
- ` + "`scope`" + `: REGIONAL or CLOUDFRONT (default REGIONAL)

## Returns

` + "`web_acls`" + `: list of web ACL dictionaries (single-element for a direct get).
`
}

func (m *WebACLInfoModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"name":  {Type: module.TypeStr},
			"scope": {Type: module.TypeStr, Default: "REGIONAL", Choices: []string{"REGIONAL", "CLOUDFRONT"}},
		},
	}, client.CommonParams())
}

func (m *WebACLInfoModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := m.resolveAPI(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	scope := types.Scope(req.Params.String("scope"))

	summaries, err := listWebACLs(ctx, api, scope)
	if err != nil {
		return nil, err
	}

	name := req.Params.String("name")
	acls := []map[string]any{}
	for _, summary := range summaries {
		if name != "" {
			if aws.ToString(summary.Name) != name {
				continue
			}
			output, err := api.GetWebACL(ctx, &wafv2.GetWebACLInput{
				Name:  summary.Name,
				Id:    summary.Id,
				Scope: scope,
			})
			if err != nil {
				if awserr.IsNotFound(err) {
					continue
				}
				return nil, fmt.Errorf("failed to get web ACL %s: %w", name, err)
			}
			dict, err := awsutil.SnakeDict(output.WebACL)
			if err != nil {
				return nil, err
			}
			acls = append(acls, dict)
			continue
		}

		dict, err := awsutil.SnakeDict(summary)
		if err != nil {
			return nil, err
		}
		acls = append(acls, dict)
	}

	return (&module.Result{}).Set("web_acls", acls), nil
}

func listWebACLs(ctx context.Context, api WebACLInfoAPI, scope types.Scope) ([]types.WebACLSummary, error) {
	var summaries []types.WebACLSummary
	input := &wafv2.ListWebACLsInput{Scope: scope}
	for {
		output, err := api.ListWebACLs(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list web ACLs: %w", err)
		}
		summaries = append(summaries, output.WebACLs...)
		if aws.ToString(output.NextMarker) == "" {
			return summaries, nil
		}
		input.NextMarker = output.NextMarker
	}
}

func (m *WebACLInfoModule) resolveAPI(ctx context.Context, params module.Params) (WebACLInfoAPI, error) {
	if m.api != nil {
		return m.api, nil
	}
	cfg, err := client.LoadConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return wafv2.NewFromConfig(cfg), nil
}
