package validate

import (
	"strings"
	"testing"
)

func TestCheck_ValidTerraform(t *testing.T) {
	t.Parallel()

	src := `resource "aws_instance" "web" {
  ami           = "ami-0c55b159cbfafe1f0"
  instance_type = "t2.micro"

  tags = {
    Name = "web"
  }
}
`
	if issues := Check("main.tf", src); issues != nil {
		t.Fatalf("Check() returned issues for valid source: %v", issues)
	}
}

func TestCheck_ValidTfvars(t *testing.T) {
	t.Parallel()

	src := `region         = "us-east-1"
instance_count = 2
`
	if issues := Check("terraform.tfvars", src); issues != nil {
		t.Fatalf("Check() returned issues for valid tfvars: %v", issues)
	}
}

func TestCheck_UnclosedBlock(t *testing.T) {
	t.Parallel()

	src := `resource "aws_instance" "web" {
  ami = "ami-0c55b159cbfafe1f0"
`
	issues := Check("main.tf", src)
	if len(issues) == 0 {
		t.Fatal("Check() found no issues in unclosed block")
	}
	if !strings.HasPrefix(issues[0], "main.tf:") {
		t.Errorf("issue %q does not carry the file name", issues[0])
	}
	joined := strings.ToLower(strings.Join(issues, "; "))
	if !strings.Contains(joined, "unclosed") {
		t.Errorf("issues %v do not mention the unclosed block", issues)
	}
}

func TestCheck_MalformedExpression(t *testing.T) {
	t.Parallel()

	src := `resource "aws_instance" "web" {
  ami = = "ami-0c55b159cbfafe1f0"
}
`
	issues := Check("main.tf", src)
	if len(issues) == 0 {
		t.Fatal("Check() found no issues in malformed expression")
	}
	for _, issue := range issues {
		if !strings.HasPrefix(issue, "main.tf:") {
			t.Errorf("issue %q does not carry the file name", issue)
		}
	}
}
