/*
Copyright The Modelserve Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"embed"
	"fmt"
	"strings"
)

var templatesFS embed.FS

// InitTemplates initializes the templates filesystem
func InitTemplates(fs embed.FS) {
	templatesFS = fs
}

// GetTemplateContent returns the content of a template by name
func GetTemplateContent(templateName string) (string, error) {
	templatePath := fmt.Sprintf("templates/%s.yaml", templateName)
	content, err := templatesFS.ReadFile(templatePath)
	if err != nil {
		return "", fmt.Errorf("template '%s' not found", templateName)
	}
	return string(content), nil
}

// ListTemplates returns a list of all available template names
func ListTemplates() ([]string, error) {
	entries, err := templatesFS.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("failed to read templates directory: %v", err)
	}

	var templates []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".yaml") {
			templateName := strings.TrimSuffix(entry.Name(), ".yaml")
			templates = append(templates, templateName)
		}
	}

	return templates, nil
}

// TemplateExists checks if a template with the given name exists
func TemplateExists(templateName string) bool {
	templatePath := fmt.Sprintf("templates/%s.yaml", templateName)
	_, err := templatesFS.Open(templatePath)
	return err == nil
}

// TemplateInfo holds a template's name and description for listings.
type TemplateInfo struct {
	Name        string
	Description string
	FilePath    string
}

// GetTemplateInfo returns template information including name, description, and file path
func GetTemplateInfo(templateName string) (TemplateInfo, error) {
	content, err := GetTemplateContent(templateName)
	if err != nil {
		return TemplateInfo{}, err
	}

	return TemplateInfo{
		Name:        templateName,
		Description: extractTemplateDescription(content),
		FilePath:    fmt.Sprintf("%s.yaml", templateName),
	}, nil
}

// extractTemplateDescription extracts the description comment from template content
func extractTemplateDescription(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# Description:") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "# Description:"))
		}
		// Stop looking after the first non-comment, non-empty line
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			break
		}
	}
	return "No description available"
}

// extractTemplateVariables lists the {{ .Variable }} names a template
// expects.
func extractTemplateVariables(content string) []string {
	var variables []string
	seen := make(map[string]bool)

	for _, line := range strings.Split(content, "\n") {
		for {
			start := strings.Index(line, "{{")
			if start == -1 {
				break
			}
			end := strings.Index(line[start:], "}}")
			if end == -1 {
				break
			}

			variable := strings.TrimSpace(line[start+2 : start+end])
			variable = strings.TrimPrefix(variable, ".")
			if spaceIndex := strings.Index(variable, " "); spaceIndex != -1 {
				variable = variable[:spaceIndex]
			}
			if pipeIndex := strings.Index(variable, "|"); pipeIndex != -1 {
				variable = variable[:pipeIndex]
			}

			if variable != "" && !seen[variable] {
				variables = append(variables, variable)
				seen[variable] = true
			}

			line = line[start+end+2:]
		}
	}

	return variables
}
