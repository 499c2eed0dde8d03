package generator

import (
	"strings"
	"unicode/utf8"
)

// Description length bounds, enforced before any cache or model traffic.
const (
	MinDescriptionLen = 10
	MaxDescriptionLen = 1000
)

// Fixed guidance strings returned on gate rejection. They are constants so
// the same invalid request always produces the same result.
const (
	guidanceTooShort = "Please provide a more detailed description of the infrastructure you need (at least 10 characters)."
	guidanceTooLong  = "Please shorten the description to 1000 characters or fewer."
	guidanceOffTopic = `This doesn't look like an infrastructure request. Describe the cloud resources you need, for example: "create an EC2 instance with a security group".`
)

// infraKeywords is the vocabulary the input gate scans for. A description
// mentioning none of these terms is answered with guidance instead of being
// sent upstream. Matching is substring-based on the lowercased description,
// so multi-word phrases and stems ("autoscal") are allowed.
var infraKeywords = []string{
	// compute
	"ec2", "instance", "vm", "virtual machine", "server", "compute",
	"lambda", "function", "container", "docker", "kubernetes", "k8s",
	"eks", "aks", "gke", "cluster", "autoscal", "node",
	// network
	"vpc", "vnet", "subnet", "network", "load balancer", "alb", "elb",
	"gateway", "dns", "route", "firewall", "security group", "cidr",
	// storage
	"s3", "bucket", "storage", "disk", "volume", "blob", "efs", "ebs",
	// database
	"rds", "database", "dynamodb", "postgres", "mysql", "redis", "sql",
	"mongo",
	// provisioning
	"terraform", "infrastructure", "provision", "deploy", "iam", "cloud",
	"queue", "sqs", "sns", "kms", "secrets", "cdn",
}

// vetDescription is the input gate. It returns ok=true when the description
// should proceed to generation; otherwise guidance carries the fixed message
// to hand back to the caller. The gate runs before the cache lookup, so
// rejected requests are never cached and never consult the cache.
func vetDescription(description string) (guidance string, ok bool) {
	switch n := utf8.RuneCountInString(description); {
	case n < MinDescriptionLen:
		return guidanceTooShort, false
	case n > MaxDescriptionLen:
		return guidanceTooLong, false
	}
	if !mentionsInfrastructure(description) {
		return guidanceOffTopic, false
	}
	return "", true
}

// mentionsInfrastructure reports whether the lowercased description contains
// at least one term from the fixed infrastructure vocabulary.
func mentionsInfrastructure(description string) bool {
	lower := strings.ToLower(description)
	for _, kw := range infraKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
