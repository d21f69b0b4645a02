package wafv2

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/wafv2"
	"github.com/aws/aws-sdk-go-v2/service/wafv2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackmill/awsmod/internal/module"
)

// Mock implementation of WebACLInfoAPI
type mockWebACLInfoAPI struct {
	listWebACLsFunc func(input *wafv2.ListWebACLsInput) (*wafv2.ListWebACLsOutput, error)
	getWebACLFunc   func(input *wafv2.GetWebACLInput) (*wafv2.GetWebACLOutput, error)
}

func (m *mockWebACLInfoAPI) ListWebACLs(_ context.Context, input *wafv2.ListWebACLsInput, _ ...func(*wafv2.Options)) (*wafv2.ListWebACLsOutput, error) {
	return m.listWebACLsFunc(input)
}

func (m *mockWebACLInfoAPI) GetWebACL(_ context.Context, input *wafv2.GetWebACLInput, _ ...func(*wafv2.Options)) (*wafv2.GetWebACLOutput, error) {
	return m.getWebACLFunc(input)
}

func runWebACLInfo(t *testing.T, api WebACLInfoAPI, raw map[string]any) (*module.Result, error) {
	t.Helper()
	m := &WebACLInfoModule{api: api}
	params, err := m.Spec().Validate(raw)
	require.NoError(t, err)
	return m.Run(context.Background(), &module.Request{Params: params})
}

func TestWebACLInfoModule_FollowsNextMarker(t *testing.T) {
	calls := 0
	api := &mockWebACLInfoAPI{
		listWebACLsFunc: func(input *wafv2.ListWebACLsInput) (*wafv2.ListWebACLsOutput, error) {
			calls++
			assert.Equal(t, types.ScopeRegional, input.Scope)
			if calls == 1 {
				return &wafv2.ListWebACLsOutput{
					WebACLs:    []types.WebACLSummary{{Name: aws.String("edge"), Id: aws.String("1")}},
					NextMarker: aws.String("edge"),
				}, nil
			}
			assert.Equal(t, "edge", aws.ToString(input.NextMarker))
			return &wafv2.ListWebACLsOutput{
				WebACLs: []types.WebACLSummary{{Name: aws.String("internal"), Id: aws.String("2")}},
			}, nil
		},
	}

	result, err := runWebACLInfo(t, api, map[string]any{})

	require.NoError(t, err)
	acls := result.Data["web_acls"].([]map[string]any)
	require.Len(t, acls, 2)
	assert.Equal(t, "edge", acls[0]["name"])
}

func TestWebACLInfoModule_GetByName(t *testing.T) {
	api := &mockWebACLInfoAPI{
		listWebACLsFunc: func(input *wafv2.ListWebACLsInput) (*wafv2.ListWebACLsOutput, error) {
			return &wafv2.ListWebACLsOutput{WebACLs: []types.WebACLSummary{
				{Name: aws.String("edge"), Id: aws.String("1")},
				{Name: aws.String("internal"), Id: aws.String("2")},
			}}, nil
		},
		getWebACLFunc: func(input *wafv2.GetWebACLInput) (*wafv2.GetWebACLOutput, error) {
			assert.Equal(t, "edge", aws.ToString(input.Name))
			assert.Equal(t, "1", aws.ToString(input.Id))
			return &wafv2.GetWebACLOutput{WebACL: &types.WebACL{
				Name:     input.Name,
				Id:       input.Id,
				Capacity: 100,
			}}, nil
		},
	}

	result, err := runWebACLInfo(t, api, map[string]any{"name": "edge"})

	require.NoError(t, err)
	acls := result.Data["web_acls"].([]map[string]any)
	require.Len(t, acls, 1)
	assert.Equal(t, float64(100), acls[0]["capacity"])
}

func TestWebACLInfoModule_UnknownNameIsEmpty(t *testing.T) {
	api := &mockWebACLInfoAPI{
		listWebACLsFunc: func(input *wafv2.ListWebACLsInput) (*wafv2.ListWebACLsOutput, error) {
			return &wafv2.ListWebACLsOutput{WebACLs: []types.WebACLSummary{
				{Name: aws.String("edge"), Id: aws.String("1")},
			}}, nil
		},
	}

	result, err := runWebACLInfo(t, api, map[string]any{"name": "ghost"})

	require.NoError(t, err)
	assert.Empty(t, result.Data["web_acls"])
}
