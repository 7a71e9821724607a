package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/deployd/internal/credentials"
	"github.com/fyrsmithlabs/deployd/internal/gateway"
)

// devCloudRunner simulates external-class actions for dev mode. Responses
// carry the minimal shape downstream consumers read (instance IDs for
// compensation, object names for artifact listings); everything is tagged
// simulated so a dev transcript cannot be mistaken for a real deployment.
func devCloudRunner() gateway.Runner {
	return gateway.RunnerFunc(func(_ context.Context, action string, params map[string]any, _ credentials.Material) (map[string]any, error) {
		now := time.Now().UTC()
		result := map[string]any{
			"simulated": true,
			"action":    action,
		}
		switch action {
		case "launch_ec2":
			result["instance_ids"] = []any{fmt.Sprintf("i-dev%08x", now.Unix()&0xffffffff)}
		case "upload_s3":
			result["bucket"] = params["bucket_name"]
			result["object"] = params["object_name"]
		case "list_s3_objects":
			result["objects"] = []any{}
			result["count"] = 0
		case "list_ec2_instances":
			result["instances"] = []any{}
			result["count"] = 0
		case "describe_images":
			result["images"] = []any{map[string]any{"image_id": params["image_ids"], "state": "available"}}
		case "describe_key_pairs":
			result["key_pairs"] = []any{map[string]any{"key_name": params["key_names"]}}
		case "deploy_lambda", "update_lambda_code":
			result["function_name"] = params["function_name"]
			result["state"] = "Active"
		case "invoke_lambda":
			result["status_code"] = 200
			result["payload"] = "{}"
		}
		return result, nil
	})
}
