package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rowlift/rowlift/internal/core"
)

// userRoles lists the purchasing roles a dashboard account can hold. Wrapped
// in a generator so the template always reflects the current list even if it
// later moves behind an API.
func userRoles(ctx context.Context) ([]string, error) {
	return []string{"Buyer", "Approver", "Receiver", "Administrator"}, nil
}

func registerUsers(deps Deps) {
	core.Register(core.DatasetDefinition{
		Key:       "users",
		Group:     "Administration",
		Label:     "Dashboard Users",
		SheetName: "Users",
		Editable:  true,
		MaxRows:   25,
		Columns: []core.ColumnDefinition{
			{
				Header: "Full Name",
				Field:  "full_name",
				Kind:   core.KindText,
				Rules:  core.Rules{Required: true, MaxLen: 120},
				Sample: "Jordan Lee",
			},
			{
				Header: "Email",
				Field:  "email",
				Kind:   core.KindText,
				Rules:  core.Rules{Required: true, MaxLen: 254},
				Sample: "jordan.lee@example.com",
			},
			{
				Header:  "Role",
				Field:   "role",
				Kind:    core.KindEnum,
				Rules:   core.Rules{Required: true},
				Options: userRoles,
				Sample:  "Buyer",
			},
			{
				// Attached through the editor after validation; the column
				// stays empty in the spreadsheet itself.
				Header: "Profile Photo",
				Field:  "photo",
				Kind:   core.KindImage,
				Rules:  core.Rules{Required: true},
			},
		},
		Attachments: map[string]core.AttachmentFunc{
			"invite": func(ctx context.Context, row core.RowData) (*core.FileHandle, error) {
				invite := map[string]string{
					"email":      row["email"],
					"role":       row["role"],
					"expires_at": time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
				}
				data, err := json.Marshal(invite)
				if err != nil {
					return nil, fmt.Errorf("build invite: %w", err)
				}
				return &core.FileHandle{
					Name:        "invite.json",
					ContentType: "application/json",
					Data:        data,
				}, nil
			},
		},
		Upload:    deps.HTTP.Uploader("/api/users"),
		Success:   deps.HTTP.Success,
		Format:    core.PayloadMultipart,
		BatchSize: 3,
	})
}
