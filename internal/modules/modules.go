// Package modules assembles the module registry.
package modules

import (
	"github.com/stackmill/awsmod/internal/module"
	"github.com/stackmill/awsmod/internal/modules/autoscaling"
	"github.com/stackmill/awsmod/internal/modules/backup"
	"github.com/stackmill/awsmod/internal/modules/cloudtrail"
	"github.com/stackmill/awsmod/internal/modules/cloudwatch"
	"github.com/stackmill/awsmod/internal/modules/costexplorer"
	"github.com/stackmill/awsmod/internal/modules/ec2"
	"github.com/stackmill/awsmod/internal/modules/elasticache"
	"github.com/stackmill/awsmod/internal/modules/glue"
	"github.com/stackmill/awsmod/internal/modules/iam"
	"github.com/stackmill/awsmod/internal/modules/lightsail"
	"github.com/stackmill/awsmod/internal/modules/mq"
	"github.com/stackmill/awsmod/internal/modules/msk"
	"github.com/stackmill/awsmod/internal/modules/rds"
	"github.com/stackmill/awsmod/internal/modules/route53"
	"github.com/stackmill/awsmod/internal/modules/s3"
	"github.com/stackmill/awsmod/internal/modules/sts"
	"github.com/stackmill/awsmod/internal/modules/wafv2"
)

// DefaultRegistry returns a registry with every built-in module registered.
func DefaultRegistry() *module.Registry {
	registry := module.NewRegistry()

	registry.MustRegister(ec2.NewEIPModule())
	registry.MustRegister(ec2.NewEIPInfoModule())
	registry.MustRegister(ec2.NewSecurityGroupInfoModule())
	registry.MustRegister(autoscaling.NewLaunchConfigInfoModule())
	registry.MustRegister(iam.NewAccessKeyModule())
	registry.MustRegister(iam.NewAccessKeyInfoModule())
	registry.MustRegister(rds.NewInstanceInfoModule())
	registry.MustRegister(rds.NewSnapshotModule())
	registry.MustRegister(s3.NewBucketInfoModule())
	registry.MustRegister(s3.NewLifecycleModule())
	registry.MustRegister(sts.NewAssumeRoleModule())
	registry.MustRegister(sts.NewSessionTokenModule())
	registry.MustRegister(cloudtrail.NewTrailModule())
	registry.MustRegister(cloudtrail.NewTrailInfoModule())
	registry.MustRegister(route53.NewZoneInfoModule())
	registry.MustRegister(cloudwatch.NewAlarmModule())
	registry.MustRegister(msk.NewClusterInfoModule())
	registry.MustRegister(glue.NewJobModule())
	registry.MustRegister(elasticache.NewClusterInfoModule())
	registry.MustRegister(backup.NewPlanInfoModule())
	registry.MustRegister(wafv2.NewWebACLInfoModule())
	registry.MustRegister(lightsail.NewInstanceModule())
	registry.MustRegister(mq.NewBrokerModule())
	registry.MustRegister(mq.NewBrokerInfoModule())
	registry.MustRegister(costexplorer.NewCostInfoModule())

	return registry
}
