package storage

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"quel-hairfit-server/modules/common/model"
)

const staticMarker = "/static/"

// NormalizeStaticRef - URL, "/static/..." 경로를 정적 루트 기준 상대 경로로 변환
func NormalizeStaticRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		if u, err := url.Parse(ref); err == nil {
			ref = u.Path
		}
	}
	ref = filepath.ToSlash(ref)
	if idx := strings.Index(ref, staticMarker); idx >= 0 {
		ref = ref[idx+len(staticMarker):]
	} else if strings.HasPrefix(ref, "static/") {
		ref = strings.TrimPrefix(ref, "static/")
	}
	return strings.TrimPrefix(ref, "/")
}

// ResolveStatic - 여러 정적 루트에서 참조 파일을 찾는다.
// 절대 경로와 ".." 구간은 받지 않으며 결과는 항상 루트 하위 경로.
// 어느 루트에서도 찾지 못하면 InputError.
func ResolveStatic(ref string, roots []string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", model.NewInputError("reference image is required")
	}

	normalized := NormalizeStaticRef(ref)
	if filepath.IsAbs(ref) && !strings.Contains(filepath.ToSlash(ref), staticMarker) {
		return "", model.NewInputError("reference path is invalid: %s", ref)
	}
	if hasDotDot(normalized) || filepath.IsAbs(filepath.FromSlash(normalized)) || filepath.VolumeName(normalized) != "" {
		return "", model.NewInputError("reference path is invalid: %s", ref)
	}
	rel := filepath.Clean(filepath.FromSlash(normalized))
	if rel == "." {
		return "", model.NewInputError("reference path is invalid: %s", ref)
	}

	for _, root := range roots {
		if candidate, ok := within(root, rel); ok && isFile(candidate) {
			return candidate, nil
		}
		// 루트가 이미 하위 폴더를 가리키는 경우 (static/hairstyles + hairstyles/x.jpg)
		if base := filepath.Base(rel); base != rel {
			if candidate, ok := within(root, base); ok && isFile(candidate) {
				return candidate, nil
			}
		}
	}
	return "", model.NewInputError("reference image not found: %s", ref)
}

func hasDotDot(ref string) bool {
	for _, part := range strings.Split(ref, "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

// within - root 아래에 있는 경우에만 join 결과 반환 (심볼릭 링크 포함)
func within(root, rel string) (string, bool) {
	candidate := filepath.Join(root, rel)
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	candidateAbs, err := filepath.Abs(candidate)
	if err != nil {
		return "", false
	}
	if resolved, err := filepath.EvalSymlinks(candidateAbs); err == nil {
		candidateAbs = resolved
		if r, err := filepath.EvalSymlinks(rootAbs); err == nil {
			rootAbs = r
		}
	}
	inside, err := filepath.Rel(rootAbs, candidateAbs)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", false
	}
	return candidate, true
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
