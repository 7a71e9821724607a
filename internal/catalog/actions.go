package catalog

// Default returns the full action registry: compute lifecycle, object
// storage, function deployment, container orchestration, and the
// repository-to-deployment composites.
func Default() *Catalog {
	return MustNew([]*Definition{
		// Compute lifecycle.
		{
			Name:     "launch_ec2",
			Category: CategoryCompute,
			Class:    ClassExternal,
			Validate: func(params map[string]any) error {
				return requireParams("launch_ec2", params, "ami_id", "instance_type")
			},
			Compensate: func(params, result map[string]any) (string, map[string]any, bool) {
				ids, _ := EnsureList(result["instance_ids"])
				if len(ids) == 0 {
					return "", nil, false
				}
				return "terminate_ec2", map[string]any{
					"instance_id": ids[0],
					"region":      params["region"],
				}, true
			},
		},
		{
			Name:        "stop_ec2",
			Category:    CategoryCompute,
			Class:       ClassExternal,
			Destructive: true,
			Validate: func(params map[string]any) error {
				return requireParams("stop_ec2", params, "instance_id")
			},
		},
		{
			Name:        "terminate_ec2",
			Category:    CategoryCompute,
			Class:       ClassExternal,
			Destructive: true,
			Validate: func(params map[string]any) error {
				return requireParams("terminate_ec2", params, "instance_id")
			},
		},
		{
			Name:     "list_ec2_instances",
			Category: CategoryCompute,
			Class:    ClassExternal,
		},
		{
			Name:     "describe_images",
			Category: CategoryCompute,
			Class:    ClassExternal,
			Validate: func(params map[string]any) error {
				if _, err := NormalizeFilters(params["filters"]); err != nil {
					return validationErr("describe_images", "%v", err)
				}
				return nil
			},
		},
		{
			Name:     "describe_key_pairs",
			Category: CategoryCompute,
			Class:    ClassExternal,
			Validate: func(params map[string]any) error {
				if _, err := NormalizeFilters(params["filters"]); err != nil {
					return validationErr("describe_key_pairs", "%v", err)
				}
				return nil
			},
		},

		// Object storage.
		{
			Name:     "create_bucket",
			Category: CategoryStorage,
			Class:    ClassExternal,
			Validate: func(params map[string]any) error {
				name := stringParam(params, "bucket_name")
				if err := ValidateBucketName(name); err != nil {
					return validationErr("create_bucket", "%v", err)
				}
				return nil
			},
		},
		{
			Name:     "upload_s3",
			Category: CategoryStorage,
			Class:    ClassExternal,
			Validate: func(params map[string]any) error {
				return requireParams("upload_s3", params, "bucket_name", "file_path")
			},
		},
		{
			Name:     "download_s3",
			Category: CategoryStorage,
			Class:    ClassExternal,
			Validate: func(params map[string]any) error {
				return requireParams("download_s3", params, "bucket_name", "object_name", "file_path")
			},
		},
		{
			Name:     "list_s3_objects",
			Category: CategoryStorage,
			Class:    ClassExternal,
			Validate: func(params map[string]any) error {
				return requireParams("list_s3_objects", params, "bucket_name")
			},
		},

		// Function deployment.
		{
			Name:     "deploy_lambda",
			Category: CategoryFunctions,
			Class:    ClassExternal,
			Validate: func(params map[string]any) error {
				return requireParams("deploy_lambda", params,
					"function_name", "runtime", "role_arn", "handler", "zip_file")
			},
		},
		{
			Name:        "update_lambda_code",
			Category:    CategoryFunctions,
			Class:       ClassExternal,
			Destructive: true,
			Validate: func(params map[string]any) error {
				return requireParams("update_lambda_code", params, "function_name", "zip_file")
			},
		},
		{
			Name:     "invoke_lambda",
			Category: CategoryFunctions,
			Class:    ClassExternal,
			Validate: func(params map[string]any) error {
				return requireParams("invoke_lambda", params, "function_name")
			},
		},

		// Container orchestration.
		{
			Name:     "create_cluster",
			Category: CategoryContainers,
			Class:    ClassExternal,
			Validate: func(params map[string]any) error {
				return requireParams("create_cluster", params, "cluster_name")
			},
		},
		{
			Name:     "register_task_definition",
			Category: CategoryContainers,
			Class:    ClassExternal,
			Validate: func(params map[string]any) error {
				if err := requireParams("register_task_definition", params, "family"); err != nil {
					return err
				}
				defs, err := EnsureList(params["container_definitions"])
				if err != nil || len(defs) == 0 {
					return validationErr("register_task_definition",
						"%q is required and must be a list", "container_definitions")
				}
				return nil
			},
		},
		{
			Name:     "create_service",
			Category: CategoryContainers,
			Class:    ClassExternal,
			Validate: func(params map[string]any) error {
				return requireParams("create_service", params,
					"cluster", "service_name", "task_definition")
			},
			Compensate: func(params, result map[string]any) (string, map[string]any, bool) {
				return "update_service", map[string]any{
					"cluster":       params["cluster"],
					"service_name":  params["service_name"],
					"desired_count": 0,
					"region":        params["region"],
				}, true
			},
		},
		{
			Name:        "update_service",
			Category:    CategoryContainers,
			Class:       ClassExternal,
			Destructive: true,
			Validate: func(params map[string]any) error {
				return requireParams("update_service", params, "cluster", "service_name")
			},
		},

		// Repository-to-deployment composites. These sequence fetch,
		// package, and delegate internally, so they take the shell path
		// with its wall-clock timeout.
		{
			Name:     "deploy_lambda_repo",
			Category: CategoryRepository,
			Class:    ClassShell,
			Validate: func(params map[string]any) error {
				return requireParams("deploy_lambda_repo", params,
					"repo_url", "function_name", "handler", "runtime", "role_arn")
			},
		},
		{
			Name:     "deploy_ec2_repo",
			Category: CategoryRepository,
			Class:    ClassShell,
			Validate: func(params map[string]any) error {
				if err := requireParams("deploy_ec2_repo", params, "repo_url", "bucket_name"); err != nil {
					return err
				}
				if launch, _ := params["launch_instance"].(bool); launch {
					return requireParams("deploy_ec2_repo", params,
						"ami_id", "instance_type", "key_name")
				}
				return nil
			},
			Compensate: func(params, result map[string]any) (string, map[string]any, bool) {
				launch, _ := EnsureMap(result["ec2_launch"])
				ids, _ := EnsureList(launch["instance_ids"])
				if len(ids) == 0 {
					return "", nil, false
				}
				return "terminate_ec2", map[string]any{
					"instance_id": ids[0],
					"region":      params["region"],
				}, true
			},
		},
	})
}
