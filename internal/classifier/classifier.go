// Package classifier assigns a file type and infrastructure category to each
// generated file. Classification is pure and total: any (filename, content)
// pair maps to exactly one type and one category, and the same input always
// maps to the same output.
package classifier

import "strings"

// FileType identifies the tooling a generated file belongs to.
type FileType string

const (
	// FileTypeTerraform marks HCL files (.tf, .tfvars).
	FileTypeTerraform FileType = "terraform"
	// FileTypeAnsible marks Ansible YAML files.
	FileTypeAnsible FileType = "ansible"
	// FileTypeConfig marks any other supporting file.
	FileTypeConfig FileType = "config"
)

// Category identifies the infrastructure concern a file addresses.
type Category string

const (
	// CategoryCompute covers instances, VMs, and serverless compute.
	CategoryCompute Category = "compute"
	// CategoryNetwork covers VPCs, subnets, firewalls, and routing.
	CategoryNetwork Category = "network"
	// CategoryDatabase covers managed and self-hosted data stores.
	CategoryDatabase Category = "database"
	// CategoryAutomation covers Ansible playbooks, roles, and tasks.
	CategoryAutomation Category = "automation"
	// CategoryInfrastructure is the default when no other category matches.
	CategoryInfrastructure Category = "infrastructure"
)

// categoryKeywords lists the keyword sets tested against lowercased file
// content, in priority order. The first set with a match wins; files matching
// nothing fall through to CategoryInfrastructure.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryCompute, []string{
		"aws_instance", "ec2", "virtual_machine", "vm_size", "compute",
		"lambda", "autoscaling", "ami",
	}},
	{CategoryNetwork, []string{
		"vpc", "subnet", "security_group", "route_table", "gateway",
		"load_balancer", "firewall", "cidr", "dns", "network",
	}},
	{CategoryDatabase, []string{
		"db_instance", "database", "rds", "dynamodb", "postgres", "mysql",
		"sql", "mongo", "redis",
	}},
	{CategoryAutomation, []string{
		"ansible", "playbook", "role", "task",
	}},
}

// TypeOf determines the file type from the filename. The terraform extension
// check runs before the ansible check, so "ansible.tf" is terraform.
func TypeOf(filename string) FileType {
	name := strings.ToLower(filename)
	if strings.HasSuffix(name, ".tf") || strings.HasSuffix(name, ".tfvars") {
		return FileTypeTerraform
	}
	if strings.HasSuffix(name, ".yml") || strings.HasSuffix(name, ".yaml") || strings.Contains(name, "ansible") {
		return FileTypeAnsible
	}
	return FileTypeConfig
}

// CategoryOf determines the infrastructure category from the file content.
func CategoryOf(content string) Category {
	lower := strings.ToLower(content)
	for _, set := range categoryKeywords {
		for _, kw := range set.keywords {
			if strings.Contains(lower, kw) {
				return set.category
			}
		}
	}
	return CategoryInfrastructure
}

// Classify assigns both the file type and category for a generated file.
func Classify(filename, content string) (FileType, Category) {
	return TypeOf(filename), CategoryOf(content)
}

// Description returns the human-readable per-file label for a classification.
// The label is deterministic so identical requests produce identical results.
func Description(ft FileType, cat Category) string {
	switch ft {
	case FileTypeAnsible:
		return "Ansible " + string(cat) + " playbook"
	case FileTypeConfig:
		return "Supporting " + string(cat) + " configuration"
	default:
		return "Terraform " + string(cat) + " configuration"
	}
}
