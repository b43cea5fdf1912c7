package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrPermissionDenied  ErrCode = "PERMISSION_DENIED"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Exam session ──────────────────────────────────────────────────
	ErrScheduleNotFound  ErrCode = "SCHEDULE_NOT_FOUND"
	ErrScheduleInactive  ErrCode = "SCHEDULE_INACTIVE"
	ErrNotRegistered     ErrCode = "NOT_REGISTERED"
	ErrTooEarly          ErrCode = "EXAM_NOT_STARTED"
	ErrTooLate           ErrCode = "EXAM_ENDED"
	ErrAlreadyCompleted  ErrCode = "ALREADY_COMPLETED"
	ErrAttemptNotFound   ErrCode = "ATTEMPT_NOT_FOUND"
	ErrAlreadySubmitted  ErrCode = "ALREADY_SUBMITTED"
	ErrTooSoon           ErrCode = "MIN_WORK_TIME_NOT_REACHED"
	ErrNoQuestions       ErrCode = "NO_QUESTIONS"
	ErrAttemptNotGraded  ErrCode = "ATTEMPT_NOT_SUBMITTED"
	ErrSessionMismatch   ErrCode = "SESSION_MISMATCH"
	ErrParticipantAbsent ErrCode = "PARTICIPANT_NOT_FOUND"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."
	case ErrPermissionDenied:
		return "Izin ditolak."
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk peserta."
	case ErrAdminAccessOnly:
		return "Sumber daya ini terbatas untuk administrator."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."

	// ─── Exam session ──────────────────────────────────────────────────
	case ErrScheduleNotFound:
		return "Jadwal ujian tidak ditemukan."
	case ErrScheduleInactive:
		return "Jadwal ujian tidak aktif."
	case ErrNotRegistered:
		return "Anda tidak terdaftar sebagai peserta jadwal ujian ini."
	case ErrTooEarly:
		return "Ujian belum dimulai."
	case ErrTooLate:
		return "Waktu ujian telah berakhir."
	case ErrAlreadyCompleted:
		return "Anda sudah menyelesaikan ujian ini."
	case ErrAttemptNotFound:
		return "Sesi ujian tidak ditemukan atau sudah tidak aktif."
	case ErrAlreadySubmitted:
		return "Ujian sudah dikumpulkan."
	case ErrTooSoon:
		return "Belum mencapai waktu minimal pengerjaan."
	case ErrNoQuestions:
		return "Bank soal ujian ini tidak memiliki soal."
	case ErrAttemptNotGraded:
		return "Hasil ujian belum dikumpulkan."
	case ErrSessionMismatch:
		return "Ujian sedang dibuka di perangkat atau tab lain."
	case ErrParticipantAbsent:
		return "Peserta tidak ditemukan."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
