// Package ecs implements the mirror's launcher.Launcher contract against
// Amazon ECS/Fargate, launching each Worker as a short-lived RunTask
// invocation.
package ecs

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/KevinZhao/s3sync/pkg/launcher"
)

// ClientConfig describes how to reach one ECS cluster.
type ClientConfig struct {
	Region string
}

// NewSDKClient builds an AWS ECS client from cfg, using the default
// credential chain.
func NewSDKClient(ctx context.Context, cfg ClientConfig) (*ecs.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return ecs.NewFromConfig(awsCfg), nil
}

// NetworkConfig describes the VPC placement of launched tasks.
type NetworkConfig struct {
	Subnets        []string
	SecurityGroups []string
	AssignPublicIP bool
}

// Client implements launcher.Launcher against one ECS cluster/task
// definition pair.
type Client struct {
	ecs            *ecs.Client
	cluster        string
	taskDefinition string
	network        NetworkConfig
}

// New wraps an ECS client bound to a cluster and the task definition run per
// worker.
func New(client *ecs.Client, cluster, taskDefinition string, network NetworkConfig) *Client {
	return &Client{ecs: client, cluster: cluster, taskDefinition: taskDefinition, network: network}
}

// ListWorkers counts running and pending tasks for the worker task
// definition family in this cluster.
func (c *Client) ListWorkers(ctx context.Context) (launcher.Census, error) {
	var census launcher.Census

	for _, status := range []types.DesiredStatus{types.DesiredStatusRunning, types.DesiredStatusPending} {
		out, err := c.ecs.ListTasks(ctx, &ecs.ListTasksInput{
			Cluster:       aws.String(c.cluster),
			Family:        aws.String(taskFamily(c.taskDefinition)),
			DesiredStatus: status,
		})
		if err != nil {
			return launcher.Census{}, fmt.Errorf("list %s tasks in %s: %w", status, c.cluster, err)
		}

		switch status {
		case types.DesiredStatusRunning:
			census.Running = len(out.TaskArns)
		case types.DesiredStatusPending:
			census.Pending = len(out.TaskArns)
		}
	}

	return census, nil
}

// Launch starts count worker tasks, split across FARGATE_SPOT and FARGATE
// capacity providers per weighting. Each RunTask call is capped at ECS's own
// per-call task limit (10); Launch issues as many calls as needed and sums
// the tasks actually started, returning the first error encountered
// alongside the partial count so the Dispatcher can retry the shortfall.
func (c *Client) Launch(ctx context.Context, weighting launcher.Weighting, count int) (int, error) {
	if count <= 0 {
		return 0, nil
	}

	strategy := capacityProviderStrategy(weighting)

	const maxPerCall = 10
	launched := 0
	for remaining := count; remaining > 0; {
		batch := remaining
		if batch > maxPerCall {
			batch = maxPerCall
		}

		out, err := c.ecs.RunTask(ctx, &ecs.RunTaskInput{
			Cluster:                  aws.String(c.cluster),
			TaskDefinition:           aws.String(c.taskDefinition),
			Count:                    aws.Int32(int32(batch)),
			CapacityProviderStrategy: strategy,
			NetworkConfiguration: &types.NetworkConfiguration{
				AwsvpcConfiguration: &types.AwsVpcConfiguration{
					Subnets:        c.network.Subnets,
					SecurityGroups: c.network.SecurityGroups,
					AssignPublicIp: assignPublicIP(c.network.AssignPublicIP),
				},
			},
		})
		if err != nil {
			return launched, fmt.Errorf("run task in %s: %w", c.cluster, err)
		}

		launched += len(out.Tasks)
		if len(out.Failures) > 0 {
			return launched, fmt.Errorf("run task in %s: %d of %d failed: %s", c.cluster, len(out.Failures), batch, failureSummary(out.Failures))
		}

		remaining -= batch
	}

	return launched, nil
}

func capacityProviderStrategy(w launcher.Weighting) []types.CapacityProviderStrategyItem {
	var strategy []types.CapacityProviderStrategyItem
	if w.Preemptible > 0 {
		strategy = append(strategy, types.CapacityProviderStrategyItem{
			CapacityProvider: aws.String("FARGATE_SPOT"),
			Weight:           int32(w.Preemptible),
		})
	}
	if w.OnDemand > 0 {
		strategy = append(strategy, types.CapacityProviderStrategyItem{
			CapacityProvider: aws.String("FARGATE"),
			Weight:           int32(w.OnDemand),
		})
	}
	return strategy
}

func assignPublicIP(assign bool) types.AssignPublicIp {
	if assign {
		return types.AssignPublicIpEnabled
	}
	return types.AssignPublicIpDisabled
}

func failureSummary(failures []types.Failure) string {
	if len(failures) == 0 {
		return ""
	}
	return aws.ToString(failures[0].Reason)
}

// taskFamily extracts the family name from a task definition reference,
// which may be "family:revision" or a full ARN.
func taskFamily(taskDefinition string) string {
	family := taskDefinition
	for i := len(family) - 1; i >= 0; i-- {
		if family[i] == '/' {
			family = family[i+1:]
			break
		}
	}
	for i := len(family) - 1; i >= 0; i-- {
		if family[i] == ':' {
			return family[:i]
		}
	}
	return family
}

var _ launcher.Launcher = (*Client)(nil)
