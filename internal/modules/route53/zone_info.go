package route53

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"

	"github.com/stackmill/awsmod/internal/awserr"
	"github.com/stackmill/awsmod/internal/awsutil"
	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
)

// ZoneInfoAPI is the slice of the Route53 API the zone info module uses.
type ZoneInfoAPI interface {
	route53.ListHostedZonesAPIClient
	GetHostedZone(ctx context.Context, params *route53.GetHostedZoneInput, optFns ...func(*route53.Options)) (*route53.GetHostedZoneOutput, error)
}

// ZoneInfoModule reports hosted zones.
type ZoneInfoModule struct {
	api ZoneInfoAPI
}

func NewZoneInfoModule() *ZoneInfoModule { return &ZoneInfoModule{} }

func (m *ZoneInfoModule) Name() string { return "route53_zone_info" }

func (m *ZoneInfoModule) Summary() string {
	return "Describe Route53 hosted zones"
}

func (m *ZoneInfoModule) Doc() string {
	return `# route53_zone_info

Lists hosted zones, or fetches one zone in detail by id. Never changes anything.

## Parameters

- ` + "`hosted_zone_id`" + `: fetch this zone only, including its name servers

## Returns

` + "`zones`" + `: list of zone dictionaries (single-element for a direct get).
`
}

func (m *ZoneInfoModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"hosted_zone_id": {Type: module.TypeStr, Aliases: []string{"zone_id"}},
		},
	}, client.CommonParams())
}

func (m *ZoneInfoModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := m.resolveAPI(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	if zoneID := req.Params.String("hosted_zone_id"); zoneID != "" {
		return m.getZone(ctx, api, zoneID)
	}

	zones := []map[string]any{}
	paginator := route53.NewListHostedZonesPaginator(api, &route53.ListHostedZonesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list hosted zones: %w", err)
		}
		for _, zone := range page.HostedZones {
			dict, err := awsutil.SnakeDict(zone)
			if err != nil {
				return nil, err
			}
			dict["id"] = strings.TrimPrefix(aws.ToString(zone.Id), "/hostedzone/")
			zones = append(zones, dict)
		}
	}

	return (&module.Result{}).Set("zones", zones), nil
}

func (m *ZoneInfoModule) getZone(ctx context.Context, api ZoneInfoAPI, zoneID string) (*module.Result, error) {
	output, err := api.GetHostedZone(ctx, &route53.GetHostedZoneInput{Id: aws.String(zoneID)})
	if err != nil {
		if awserr.IsNotFound(err) {
			return (&module.Result{}).Set("zones", []map[string]any{}), nil
		}
		return nil, fmt.Errorf("failed to get hosted zone %s: %w", zoneID, err)
	}

	dict, err := awsutil.SnakeDict(output.HostedZone)
	if err != nil {
		return nil, err
	}
	dict["id"] = strings.TrimPrefix(aws.ToString(output.HostedZone.Id), "/hostedzone/")
	if output.DelegationSet != nil {
		dict["name_servers"] = output.DelegationSet.NameServers
	}

	return (&module.Result{}).Set("zones", []map[string]any{dict}), nil
}

func (m *ZoneInfoModule) resolveAPI(ctx context.Context, params module.Params) (ZoneInfoAPI, error) {
	if m.api != nil {
		return m.api, nil
	}
	cfg, err := client.LoadConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return route53.NewFromConfig(cfg), nil
}
