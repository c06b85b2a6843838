package services

import (
	"html/template"
	"strings"

	contextutils "metronix/internal/utils"
)

const emailLayoutStart = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f8f9fa; border-radius: 8px; }
        .card { background-color: white; padding: 15px; border-radius: 5px; margin: 15px 0; }
        .button { display: inline-block; background-color: #007bff; color: white; padding: 12px 24px; text-decoration: none; border-radius: 5px; }
        .entry { border-left: 3px solid #007bff; padding-left: 10px; margin: 10px 0; }
    </style>
</head>
<body>
<div class="container">`

const emailLayoutEnd = `
    <p style="margin-top: 30px;">Best regards,<br>Metronix Team</p>
</div>
</body>
</html>`

const complaintCardTemplate = `
    <div class="card">
        <h3 style="margin-top: 0;">{{.Complaint.Title}}</h3>
        <p><strong>Category:</strong> {{.Complaint.Category}}</p>
        <p><strong>Priority:</strong> {{.Complaint.Priority}}</p>
        <p><strong>Location:</strong> {{if .Complaint.Location}}{{.Complaint.Location}}{{else}}Not specified{{end}}</p>
        <p><strong>Description:</strong> {{.Complaint.Description}}</p>
        <p><strong>Status:</strong> {{.Complaint.Status}}</p>
    </div>`

var emailTemplates = template.Must(template.New("emails").Parse(
	`{{define "complaint_card"}}` + complaintCardTemplate + `{{end}}` +

		`{{define "complaint_confirmation"}}` + emailLayoutStart + `
    <h2 style="color: #007bff;">Complaint Confirmation</h2>
    <p>Dear {{.Name}},</p>
    <p>Your complaint has been successfully submitted. Here are the details:</p>
    {{template "complaint_card" .}}
    <p>We will review your complaint and assign it to the appropriate department shortly.</p>
    <p>You can track the progress of your complaint through your dashboard.</p>` + emailLayoutEnd + `{{end}}` +

		`{{define "complaint_assigned"}}` + emailLayoutStart + `
    <h2 style="color: #dc3545;">New Complaint Assignment</h2>
    <p>Dear {{.Name}},</p>
    <p>A new complaint has been assigned to you. Please review and take appropriate action.</p>
    {{template "complaint_card" .}}
    <div style="text-align: center; margin: 20px 0;">
        <a href="{{.DashboardURL}}" class="button">View Dashboard</a>
    </div>` + emailLayoutEnd + `{{end}}` +

		`{{define "status_update"}}` + emailLayoutStart + `
    <h2 style="color: #17a2b8;">Complaint Status Update</h2>
    <p>Dear {{.Name}},</p>
    <p>The status of your complaint has been updated.</p>
    <div class="card">
        <h3 style="margin-top: 0;">{{.Complaint.Title}}</h3>
        <p><strong>Previous Status:</strong> {{.PreviousStatus}}</p>
        <p><strong>New Status:</strong> <span style="color: #28a745; font-weight: bold;">{{.NewStatus}}</span></p>
        {{if .Note}}<p><strong>Note:</strong> {{.Note}}</p>{{end}}
    </div>
    <div style="text-align: center; margin: 20px 0;">
        <a href="{{.DashboardURL}}" class="button">View Dashboard</a>
    </div>` + emailLayoutEnd + `{{end}}` +

		`{{define "daily_summary"}}` + emailLayoutStart + `
    <h2 style="color: #6f42c1;">Daily Complaint Summary</h2>
    <p>Dear {{.Name}},</p>
    <p>Here is the summary of complaints for {{.Summary.Date}}:</p>
    <div class="card">
        <h3 style="margin-top: 0;">Summary Statistics</h3>
        <ul style="list-style: none; padding: 0;">
            <li><strong>Total Complaints:</strong> {{.Summary.Total}}</li>
            <li><strong>Submitted:</strong> {{.Summary.Pending}}</li>
            <li><strong>Assigned:</strong> {{.Summary.Assigned}}</li>
            <li><strong>Resolved:</strong> {{.Summary.Resolved}}</li>
        </ul>
    </div>
    {{if .Recent}}<div class="card">
        <h3 style="margin-top: 0;">Recent Complaints</h3>
        {{range .Recent}}<div class="entry">
            <strong>{{.Title}}</strong><br>
            <small>Category: {{.Category}} | Priority: {{.Priority}} | Status: {{.Status}}</small>
        </div>{{end}}
    </div>{{end}}
    <div style="text-align: center; margin: 20px 0;">
        <a href="{{.DashboardURL}}" class="button">View Full Dashboard</a>
    </div>` + emailLayoutEnd + `{{end}}`,
))

// renderEmailTemplate executes one of the named email templates
func renderEmailTemplate(templateName string, data map[string]interface{}) (string, error) {
	if templateName == "complaint_card" || emailTemplates.Lookup(templateName) == nil {
		return "", contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown template: %s", templateName)
	}

	var buf strings.Builder
	if err := emailTemplates.ExecuteTemplate(&buf, templateName, data); err != nil {
		return "", contextutils.WrapError(err, "failed to execute template")
	}
	return buf.String(), nil
}
