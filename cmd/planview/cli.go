package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdf360/planview/internal/api"
)

// runUpload sends plan documents to a running server:
//
//	planview upload -server http://localhost:8080 -project 3 [-subfolder "Level 1"] a.pdf b.png
//
// With -new-project a project of that name is created first and receives the files.
func runUpload(args []string) error {
	return upload(args, os.Stdout)
}

func upload(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.SetOutput(out)
	server := fs.String("server", "http://localhost:8080", "REST API base URL")
	projectID := fs.Uint("project", 0, "target project id")
	newProject := fs.String("new-project", "", "create a project with this name and upload into it")
	subfolder := fs.String("subfolder", "", "folder inside the project")
	title := fs.String("title", "", "plan title, only with a single file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	paths := fs.Args()
	if len(paths) == 0 {
		return errors.New("no files provided")
	}
	if *title != "" && len(paths) > 1 {
		return errors.New("-title needs exactly one file")
	}
	if (*projectID == 0) == (*newProject == "") {
		return errors.New("exactly one of -project or -new-project is required")
	}

	client := api.NewClient(*server)
	if err := client.Healthcheck(); err != nil {
		return fmt.Errorf("server not ready: %w", err)
	}

	id := *projectID
	if *newProject != "" {
		p, err := client.CreateProject(*newProject, "")
		if err != nil {
			return err
		}
		id = p.ID
		fmt.Fprintf(out, "Created project %d (%s)\n", p.ID, p.Folder)
	}

	var failed []string
	for _, path := range paths {
		planTitle := *title
		if planTitle == "" {
			planTitle = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		plan, err := client.UploadPlan(uint(id), path, planTitle, *subfolder)
		if err != nil {
			fmt.Fprintf(out, "Failed %s: %v\n", path, err)
			failed = append(failed, path)
			continue
		}
		fmt.Fprintf(out, "Uploaded %s as plan %d (%s)\n", path, plan.ID, plan.Path)
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d uploads failed", len(failed), len(paths))
	}
	return nil
}
