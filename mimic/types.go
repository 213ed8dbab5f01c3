package mimic

// Typed records, one per table. Field order matches the table's Columns.
// Optional (*type) fields map to Avro ["null", T] unions and Parquet
// optional columns. Timestamps are epoch milliseconds.

// Patient is one row of PATIENTS.
type Patient struct {
	RowID      int32   `parquet:"row_id"`
	SubjectID  int32   `parquet:"subject_id"`
	Gender     *string `parquet:"gender,optional"`
	DOB        *int64  `parquet:"dob,optional"`
	DOD        *int64  `parquet:"dod,optional"`
	DODHosp    *int64  `parquet:"dod_hosp,optional"`
	DODSSN     *int64  `parquet:"dod_ssn,optional"`
	ExpireFlag int32   `parquet:"expire_flag"`
}

func (p Patient) Values() []any {
	return []any{
		p.RowID,
		p.SubjectID,
		optional(p.Gender),
		optional(p.DOB),
		optional(p.DOD),
		optional(p.DODHosp),
		optional(p.DODSSN),
		p.ExpireFlag,
	}
}

func parsePatient(r *Row) Record {
	return Patient{
		RowID:      r.Int("row_id"),
		SubjectID:  r.Int("subject_id"),
		Gender:     r.OptString("gender"),
		DOB:        r.OptTime("dob"),
		DOD:        r.OptTime("dod"),
		DODHosp:    r.OptTime("dod_hosp"),
		DODSSN:     r.OptTime("dod_ssn"),
		ExpireFlag: r.Int("expire_flag"),
	}
}

// Admission is one row of ADMISSIONS.
type Admission struct {
	RowID              int32   `parquet:"row_id"`
	SubjectID          int32   `parquet:"subject_id"`
	HadmID             int32   `parquet:"hadm_id"`
	AdmitTime          *int64  `parquet:"admittime,optional"`
	DischTime          *int64  `parquet:"dischtime,optional"`
	DeathTime          *int64  `parquet:"deathtime,optional"`
	AdmissionType      *string `parquet:"admission_type,optional"`
	AdmissionLocation  *string `parquet:"admission_location,optional"`
	DischargeLocation  *string `parquet:"discharge_location,optional"`
	Insurance          *string `parquet:"insurance,optional"`
	Language           *string `parquet:"language,optional"`
	Religion           *string `parquet:"religion,optional"`
	MaritalStatus      *string `parquet:"marital_status,optional"`
	Ethnicity          *string `parquet:"ethnicity,optional"`
	EDRegTime          *int64  `parquet:"edregtime,optional"`
	EDOutTime          *int64  `parquet:"edouttime,optional"`
	Diagnosis          *string `parquet:"diagnosis,optional"`
	HospitalExpireFlag int32   `parquet:"hospital_expire_flag"`
	HasCharteventsData int32   `parquet:"has_chartevents_data"`
}

func (a Admission) Values() []any {
	return []any{
		a.RowID,
		a.SubjectID,
		a.HadmID,
		optional(a.AdmitTime),
		optional(a.DischTime),
		optional(a.DeathTime),
		optional(a.AdmissionType),
		optional(a.AdmissionLocation),
		optional(a.DischargeLocation),
		optional(a.Insurance),
		optional(a.Language),
		optional(a.Religion),
		optional(a.MaritalStatus),
		optional(a.Ethnicity),
		optional(a.EDRegTime),
		optional(a.EDOutTime),
		optional(a.Diagnosis),
		a.HospitalExpireFlag,
		a.HasCharteventsData,
	}
}

func parseAdmission(r *Row) Record {
	return Admission{
		RowID:              r.Int("row_id"),
		SubjectID:          r.Int("subject_id"),
		HadmID:             r.Int("hadm_id"),
		AdmitTime:          r.OptTime("admittime"),
		DischTime:          r.OptTime("dischtime"),
		DeathTime:          r.OptTime("deathtime"),
		AdmissionType:      r.OptString("admission_type"),
		AdmissionLocation:  r.OptString("admission_location"),
		DischargeLocation:  r.OptString("discharge_location"),
		Insurance:          r.OptString("insurance"),
		Language:           r.OptString("language"),
		Religion:           r.OptString("religion"),
		MaritalStatus:      r.OptString("marital_status"),
		Ethnicity:          r.OptString("ethnicity"),
		EDRegTime:          r.OptTime("edregtime"),
		EDOutTime:          r.OptTime("edouttime"),
		Diagnosis:          r.OptString("diagnosis"),
		HospitalExpireFlag: r.Int("hospital_expire_flag"),
		HasCharteventsData: r.Int("has_chartevents_data"),
	}
}

// ICUStay is one row of ICUSTAYS. LOS is the length of stay in fractional days.
type ICUStay struct {
	RowID         int32    `parquet:"row_id"`
	SubjectID     int32    `parquet:"subject_id"`
	HadmID        int32    `parquet:"hadm_id"`
	ICUStayID     int32    `parquet:"icustay_id"`
	FirstCareunit *string  `parquet:"first_careunit,optional"`
	LastCareunit  *string  `parquet:"last_careunit,optional"`
	InTime        *int64   `parquet:"intime,optional"`
	OutTime       *int64   `parquet:"outtime,optional"`
	LOS           *float64 `parquet:"los,optional"`
}

func (s ICUStay) Values() []any {
	return []any{
		s.RowID,
		s.SubjectID,
		s.HadmID,
		s.ICUStayID,
		optional(s.FirstCareunit),
		optional(s.LastCareunit),
		optional(s.InTime),
		optional(s.OutTime),
		optional(s.LOS),
	}
}

func parseICUStay(r *Row) Record {
	return ICUStay{
		RowID:         r.Int("row_id"),
		SubjectID:     r.Int("subject_id"),
		HadmID:        r.Int("hadm_id"),
		ICUStayID:     r.Int("icustay_id"),
		FirstCareunit: r.OptString("first_careunit"),
		LastCareunit:  r.OptString("last_careunit"),
		InTime:        r.OptTime("intime"),
		OutTime:       r.OptTime("outtime"),
		LOS:           r.OptFloat("los"),
	}
}

// Diagnosis is one row of DIAGNOSES_ICD.
type Diagnosis struct {
	RowID     int32   `parquet:"row_id"`
	SubjectID int32   `parquet:"subject_id"`
	HadmID    int32   `parquet:"hadm_id"`
	SeqNum    *int32  `parquet:"seq_num,optional"`
	ICD9Code  *string `parquet:"icd9_code,optional"`
}

func (d Diagnosis) Values() []any {
	return []any{
		d.RowID,
		d.SubjectID,
		d.HadmID,
		optional(d.SeqNum),
		optional(d.ICD9Code),
	}
}

func parseDiagnosis(r *Row) Record {
	return Diagnosis{
		RowID:     r.Int("row_id"),
		SubjectID: r.Int("subject_id"),
		HadmID:    r.Int("hadm_id"),
		SeqNum:    r.OptInt("seq_num"),
		ICD9Code:  r.OptString("icd9_code"),
	}
}

// optional turns a nil pointer into an untyped nil and dereferences the rest,
// so callers can test v == nil without reflection.
func optional[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
