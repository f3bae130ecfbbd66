package contracts

// Pipeline Stage 정의 (SSOT)
// 모든 로그, 요약, 텔레메트리에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   ingest → truth → reconcile → metrics → persist → report

// Stage represents a pipeline stage
type Stage string

const (
	// StageIngest: 예측 CSV 수집 및 정규화
	// 위치: internal/ingest/, internal/schema/
	StageIngest Stage = "INGEST"

	// StageTruth: 실현 가격 조회 및 수익률 계산
	// 위치: internal/truth/, internal/external/yahoo/
	StageTruth Stage = "TRUTH"

	// StageReconcile: 예측 ↔ 실현 조인
	// 위치: internal/reconcile/
	StageReconcile Stage = "RECONCILE"

	// StageMetrics: 모델 스킬 지표 계산
	// 위치: internal/metrics/
	StageMetrics Stage = "METRICS"

	// StagePersist: 웨어하우스 적재
	// 위치: internal/warehouse/
	StagePersist Stage = "PERSIST"

	// StageReport: 리포트 렌더링
	// 위치: internal/report/
	StageReport Stage = "REPORT"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// Description returns a short human description of the stage
func (s Stage) Description() string {
	switch s {
	case StageIngest:
		return "예측 아티팩트 수집"
	case StageTruth:
		return "실현 수익률 조회"
	case StageReconcile:
		return "예측/실현 조인"
	case StageMetrics:
		return "스킬 지표 계산"
	case StagePersist:
		return "웨어하우스 적재"
	case StageReport:
		return "리포트 생성"
	default:
		return "알 수 없음"
	}
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{
		StageIngest,
		StageTruth,
		StageReconcile,
		StageMetrics,
		StagePersist,
		StageReport,
	}
}

// StageResult represents the result of a pipeline stage execution
type StageResult struct {
	Stage       Stage                  `json:"stage"`
	Success     bool                   `json:"success"`
	InputCount  int                    `json:"input_count"`
	OutputCount int                    `json:"output_count"`
	Duration    int64                  `json:"duration_ms"`
	Error       string                 `json:"error,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}
