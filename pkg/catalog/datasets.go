package catalog

// Built-in catalogs for the INEP dataset families. These enumerate every
// physical column name observed across the 2009-2023 file vintages;
// operators can override them with a catalog file when a new vintage
// introduces yet another spelling.

// ENEMStudent returns the catalog for ENEM student-level microdata.
// A literal score of 0 marks an absent candidate, not a real result, so
// all subject scores carry the zero-as-missing flag.
func ENEMStudent() *Catalog {
	return &Catalog{
		Dataset: "enem",
		Fields: []Field{
			{
				Name:       "uf",
				Role:       RoleGroupKey,
				Candidates: []string{"SG_UF_PROVA", "UF_PROVA", "SG_UF_RESIDENCIA", "NO_UF_PROVA"},
				Substring:  "UF",
				Mandatory:  true,
				OutputName: "UF",
			},
			{
				Name:       "school_id",
				Role:       RoleFlag,
				Candidates: []string{"CO_ESCOLA", "ID_ESCOLA", "COD_ESCOLA", "PK_COD_ENTIDADE", "CO_ENTIDADE"},
			},
			{
				Name:       "completion_status",
				Role:       RoleFlag,
				Candidates: []string{"TP_ST_CONCLUSAO", "IN_TP_ENSINO", "SITUACAO_CONCLUSAO"},
			},
			{
				Name:          "score_cn",
				Role:          RoleMeasure,
				Candidates:    []string{"NU_NOTA_CN", "NOTA_CN"},
				Mandatory:     true,
				ZeroAsMissing: true,
				InGlobalMean:  true,
				OutputName:    "Ciências_Natureza",
			},
			{
				Name:          "score_ch",
				Role:          RoleMeasure,
				Candidates:    []string{"NU_NOTA_CH", "NOTA_CH"},
				Mandatory:     true,
				ZeroAsMissing: true,
				InGlobalMean:  true,
				OutputName:    "Ciências_Humanas",
			},
			{
				Name:          "score_lc",
				Role:          RoleMeasure,
				Candidates:    []string{"NU_NOTA_LC", "NOTA_LC"},
				Mandatory:     true,
				ZeroAsMissing: true,
				InGlobalMean:  true,
				OutputName:    "Linguagens",
			},
			{
				Name:          "score_mt",
				Role:          RoleMeasure,
				Candidates:    []string{"NU_NOTA_MT", "NOTA_MT"},
				Mandatory:     true,
				ZeroAsMissing: true,
				InGlobalMean:  true,
				OutputName:    "Matemática",
			},
			{
				Name:          "score_red",
				Role:          RoleMeasure,
				Candidates:    []string{"NU_NOTA_REDACAO", "NU_NOTA_RED"},
				ZeroAsMissing: true,
				InGlobalMean:  true,
				OutputName:    "Redação",
			},
		},
	}
}

// SAEBSchool returns the catalog for SAEB school-level microdata. Scores
// are already school means, so the present-student count acts as the
// sampling weight for state aggregation. Candidate order encodes the
// grade priority: high school first, then 9th and 5th grade.
func SAEBSchool() *Catalog {
	return &Catalog{
		Dataset:     "saeb",
		MemberToken: "TS_ESCOLA",
		Fields: []Field{
			{
				Name:       "uf",
				Role:       RoleGroupKey,
				Candidates: []string{"ID_UF", "CO_UF", "UF", "SG_UF"},
				Substring:  "UF",
				Mandatory:  true,
				OutputName: "UF",
			},
			{
				Name:       "network",
				Role:       RoleFlag,
				Candidates: []string{"ID_DEPENDENCIA_ADM", "IN_PUBLICA", "ID_REDE", "TP_DEPENDENCIA"},
				Substring:  "DEPENDENCIA",
			},
			{
				Name:         "score_lp",
				Role:         RoleMeasure,
				Candidates:   []string{"MEDIA_3EM_LP", "MEDIA_9EF_LP", "MEDIA_5EF_LP", "PROFICIENCIA_LP_SAEB", "PROFICIENCIA_LP"},
				Mandatory:    true,
				InGlobalMean: true,
				OutputName:   "Média_Port",
			},
			{
				Name:         "score_mt",
				Role:         RoleMeasure,
				Candidates:   []string{"MEDIA_3EM_MT", "MEDIA_9EF_MT", "MEDIA_5EF_MT", "PROFICIENCIA_MT_SAEB", "PROFICIENCIA_MT"},
				Mandatory:    true,
				InGlobalMean: true,
				OutputName:   "Média_Mat",
			},
			{
				Name:       "ses",
				Role:       RoleMeasure,
				Candidates: []string{"NIVEL_SOCIO_ECONOMICO", "NSE", "MEDIA_NIVEL_SOCIO_ECONOMICO"},
				OutputName: "SES_Index",
			},
			{
				Name:       "students",
				Role:       RoleWeight,
				Candidates: []string{"NU_PRESENTES_3EM", "NU_PRESENTES_EM", "NU_PRESENTES_9EF", "QTD_ALUNOS_3EM", "NU_PRESENTES"},
				Substring:  "PRESENTES",
				OutputName: "N_Alunos",
			},
		},
	}
}

// Builtin returns the built-in catalog for a dataset family name, or nil.
func Builtin(dataset string) *Catalog {
	switch dataset {
	case "enem":
		return ENEMStudent()
	case "saeb":
		return SAEBSchool()
	default:
		return nil
	}
}
