package packager

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// zipDirectory writes a deflate-compressed archive of source to dest,
// preserving paths relative to source. Git metadata is excluded. Returns
// the archive size in bytes.
func zipDirectory(source, dest string) (int64, error) {
	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	w := zip.NewWriter(out)
	err = filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		header.Method = zip.Deflate

		entry, err := w.CreateHeader(header)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(entry, f)
		return err
	})
	if err != nil {
		w.Close()
		return 0, fmt.Errorf("archive %s: %w", source, err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("finalize archive: %w", err)
	}

	info, err := out.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ArtifactName builds a timestamped artifact object name from a base name.
func ArtifactName(base string) string {
	base = strings.TrimSpace(base)
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "artifact"
	}
	return fmt.Sprintf("%s-%s.zip", base, time.Now().UTC().Format("20060102150405"))
}

// DefaultUserData returns the bootstrap script for EC2 instances that pull
// their artifact from S3 on first boot.
func DefaultUserData(bucket, object, installPath string) string {
	if installPath == "" {
		installPath = "/opt/app"
	}
	return fmt.Sprintf(`#!/bin/bash
set -e
sudo yum update -y
sudo yum install -y unzip awscli
mkdir -p %s
aws s3 cp s3://%s/%s /tmp/deployment.zip
unzip -o /tmp/deployment.zip -d %s
`, installPath, bucket, object, installPath)
}
