package model

// ResultKind - VendorResult 의 활성 variant
type ResultKind int

const (
	KindOkImage ResultKind = iota + 1
	KindOkTask
	KindRefused
	KindFailed
)

func (k ResultKind) String() string {
	switch k {
	case KindOkImage:
		return "ok_image"
	case KindOkTask:
		return "ok_task"
	case KindRefused:
		return "refused"
	case KindFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// FailureKind - Failed variant 의 분류
type FailureKind string

const (
	FailureTimeout     FailureKind = "timeout"
	FailureNetwork     FailureKind = "network"
	FailureNoImage     FailureKind = "no_image"
	FailureCredentials FailureKind = "credentials"
	FailureInput       FailureKind = "input"
	FailureVendor      FailureKind = "vendor"
)

// Transient - 한 번 재시도할 가치가 있는 실패인지
func (k FailureKind) Transient() bool {
	switch k {
	case FailureTimeout, FailureNetwork, FailureNoImage, FailureVendor:
		return true
	default:
		return false
	}
}

// 거절 사유
const (
	RefusalContentOther = "content_other"
	RefusalSafety       = "safety"
)

// VendorResult - 모든 어댑터가 반환하는 정규화된 결과.
// 생성자를 통해서만 만들어지며 한 번에 하나의 variant 만 채워진다.
type VendorResult struct {
	kind     ResultKind
	image    []byte
	artifact *Artifact
	task     string
	reason   string
	failure  FailureKind
	message  string
}

// OkImage - 이미지 bytes 결과 (비어있으면 no_image 실패)
func OkImage(data []byte) VendorResult {
	if len(data) == 0 {
		return Failed(FailureNoImage, "vendor returned an empty image")
	}
	return VendorResult{kind: KindOkImage, image: data}
}

// OkTask - 비동기 벤더의 작업 핸들 (아직 처리 중)
func OkTask(handle string) VendorResult {
	return VendorResult{kind: KindOkTask, task: handle}
}

// Refused - 벤더 안전 필터에 의한 거절
func Refused(reason, message string) VendorResult {
	if reason == "" {
		reason = RefusalSafety
	}
	return VendorResult{kind: KindRefused, reason: reason, message: message}
}

// Failed - 실패
func Failed(kind FailureKind, message string) VendorResult {
	return VendorResult{kind: KindFailed, failure: kind, message: message}
}

// WithArtifact - 이미 저장된 결과물 정보를 붙인다 (이미지 결과에만 적용)
func (r VendorResult) WithArtifact(a Artifact) VendorResult {
	if r.kind != KindOkImage {
		return r
	}
	r.artifact = &a
	return r
}

func (r VendorResult) Kind() ResultKind { return r.kind }
func (r VendorResult) IsImage() bool    { return r.kind == KindOkImage }
func (r VendorResult) IsTask() bool     { return r.kind == KindOkTask }
func (r VendorResult) IsRefused() bool  { return r.kind == KindRefused }
func (r VendorResult) IsFailed() bool   { return r.kind == KindFailed }

func (r VendorResult) Image() []byte         { return r.image }
func (r VendorResult) TaskHandle() string    { return r.task }
func (r VendorResult) RefusalReason() string { return r.reason }
func (r VendorResult) Failure() FailureKind  { return r.failure }
func (r VendorResult) Message() string       { return r.message }

// Artifact - 어댑터가 이미 기록한 결과물 (없으면 nil)
func (r VendorResult) Artifact() *Artifact {
	if r.artifact == nil {
		return nil
	}
	a := *r.artifact
	return &a
}

// Err - 에러 분류 체계로 변환 (성공 variant 는 nil)
func (r VendorResult) Err() error {
	switch r.kind {
	case KindOkImage, KindOkTask:
		return nil
	case KindRefused:
		return &Error{Kind: ErrVendorRefusal, Message: r.reason + ": " + r.message}
	case KindFailed:
		switch r.failure {
		case FailureCredentials:
			return &Error{Kind: ErrCredential, Message: r.message}
		case FailureInput:
			return &Error{Kind: ErrInput, Message: r.message}
		default:
			return &Error{Kind: ErrVendorTransient, Message: string(r.failure) + ": " + r.message}
		}
	default:
		return &Error{Kind: ErrVendorTransient, Message: "invalid vendor result"}
	}
}
