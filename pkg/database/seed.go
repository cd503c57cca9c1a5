package database

import (
	"tutor_backend/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Seed 写入默认学科、学习路径和成就目录，已存在的记录保持不变
func Seed(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(DefaultSubjects()).Error; err != nil {
			return err
		}

		var pathCount int64
		if err := tx.Model(&model.LearningPath{}).Count(&pathCount).Error; err != nil {
			return err
		}
		if pathCount == 0 {
			for _, p := range DefaultLearningPaths() {
				path := p
				if err := tx.Create(&path).Error; err != nil {
					return err
				}
			}
		}

		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(DefaultAchievements()).Error
	})
}

const socraticMethod = `
Tu metodología:
- NUNCA des la respuesta directa o final
- Haz preguntas guía que lleven al estudiante a descubrir la solución
- Usa analogías y ejemplos concretos
- Celebra los aciertos y reorienta suavemente los errores`

func DefaultSubjects() []model.Subject {
	return []model.Subject{
		{
			ID:           "mathematics",
			Name:         "Matemáticas",
			Icon:         "calculator",
			Color:        "#3B82F6",
			SystemPrompt: "Eres 'IA Profesor', un tutor socrático especializado en matemáticas.\n" + socraticMethod + "\n- Descompón problemas complejos en pasos más simples\n\nÁreas que dominas: álgebra, geometría, cálculo, estadística, trigonometría.",
			Difficulty:   model.DifficultyIntermediate,
			Concepts:     datatypes.JSONSlice[string]{"álgebra", "geometría", "cálculo", "estadística", "ecuaciones", "funciones"},
			IsActive:     true,
		},
		{
			ID:           "history",
			Name:         "Historia",
			Icon:         "landmark",
			Color:        "#F59E0B",
			SystemPrompt: "Eres 'IA Profesor', un tutor socrático especializado en historia.\n" + socraticMethod + "\n- Ayuda a analizar causas y consecuencias\n- Conecta eventos históricos con el presente",
			Difficulty:   model.DifficultyIntermediate,
			Concepts:     datatypes.JSONSlice[string]{"civilizaciones", "guerras", "política", "cultura", "economía", "sociedades"},
			IsActive:     true,
		},
		{
			ID:           "grammar",
			Name:         "Gramática",
			Icon:         "book-open",
			Color:        "#10B981",
			SystemPrompt: "Eres 'IA Profesor', un tutor socrático especializado en gramática y lenguaje.\n" + socraticMethod + "\n- Haz que el estudiante identifique errores por sí mismo\n- Explica el \"por qué\" de las reglas, no solo el \"qué\"",
			Difficulty:   model.DifficultyIntermediate,
			Concepts:     datatypes.JSONSlice[string]{"sintaxis", "morfología", "ortografía", "semántica", "redacción"},
			IsActive:     true,
		},
		{
			ID:           "science",
			Name:         "Ciencias",
			Icon:         "flask",
			Color:        "#8B5CF6",
			SystemPrompt: "Eres 'IA Profesor', un tutor socrático especializado en ciencias naturales.\n" + socraticMethod + "\n- Guía al estudiante a formular hipótesis y predicciones",
			Difficulty:   model.DifficultyIntermediate,
			Concepts:     datatypes.JSONSlice[string]{"método científico", "materia", "energía", "vida", "universo"},
			IsActive:     true,
		},
		{
			ID:           "programming",
			Name:         "Programación",
			Icon:         "code",
			Color:        "#EF4444",
			SystemPrompt: "Eres 'IA Profesor', un tutor socrático especializado en programación.\n" + socraticMethod + "\n- Guía en la lógica algorítmica antes del código\n- Ayuda a depurar errores haciendo preguntas sobre el flujo",
			Difficulty:   model.DifficultyAdvanced,
			Concepts:     datatypes.JSONSlice[string]{"algoritmo", "variable", "bucle", "función", "objeto", "depuración"},
			IsActive:     true,
		},
	}
}

func DefaultLearningPaths() []model.LearningPath {
	return []model.LearningPath{
		{
			ID:                "math-foundations",
			Title:             "Fundamentos de Matemática",
			Description:       "Construye una base sólida en aritmética, álgebra básica y resolución de problemas.",
			Subject:           "mathematics",
			Difficulty:        model.DifficultyBeginner,
			EstimatedDuration: 12,
			Tags:              datatypes.JSONSlice[string]{"matemática", "álgebra", "principiantes"},
			IsRecommended:     true,
			AverageRating:     4.7,
			Prerequisites:     datatypes.JSONSlice[string]{"Operaciones básicas"},
			LearningObjectives: datatypes.JSONSlice[string]{
				"Comprender operaciones aritméticas esenciales",
				"Introducir el pensamiento algebraico",
				"Aplicar estrategias de resolución de problemas",
			},
			Modules: []model.LearningModule{
				{
					ID:            "math-foundations-module-1",
					Title:         "Aritmética esencial",
					Description:   "Repaso de operaciones básicas, fracciones y porcentajes.",
					Order:         1,
					EstimatedTime: 60,
					Type:          model.ModuleLesson,
					IsRequired:    true,
					Content: datatypes.NewJSONType(model.ModuleContent{
						Kind:        model.ContentText,
						Title:       "Conceptos clave de aritmética",
						Description: "Material teórico e interactivo para refrescar aritmética.",
						Resources: []model.ModuleResource{
							{ID: "res-1", Title: "Guía visual de fracciones", Kind: model.ResourceDocument, URL: "https://example.com/fracciones.pdf"},
						},
					}),
				},
				{
					ID:            "math-foundations-module-2",
					Title:         "Introducción al álgebra",
					Description:   "Expresiones algebraicas, ecuaciones simples y patrones.",
					Order:         2,
					EstimatedTime: 75,
					Type:          model.ModulePractice,
					IsRequired:    true,
					Content: datatypes.NewJSONType(model.ModuleContent{
						Kind:        model.ContentInteractive,
						Title:       "Resolver ecuaciones paso a paso",
						Description: "Ejercicios guiados con retroalimentación inmediata.",
					}),
				},
				{
					ID:            "math-foundations-module-3",
					Title:         "Resolución de problemas",
					Description:   "Estrategias para abordar problemas matemáticos cotidianos.",
					Order:         3,
					EstimatedTime: 90,
					Type:          model.ModuleProject,
					IsRequired:    true,
					Content: datatypes.NewJSONType(model.ModuleContent{
						Kind:        model.ContentConversation,
						Title:       "Laboratorio de problemas",
						Description: "Actividades guiadas con el tutor IA para practicar pensamiento lógico.",
						Prompts: []string{
							"Describe el problema en tus propias palabras",
							"Identifica la información conocida y desconocida",
						},
					}),
				},
			},
		},
		{
			ID:                "history-latin-america",
			Title:             "Historia de América Latina: Siglo XX",
			Description:       "Explora los eventos clave que marcaron el siglo XX en América Latina.",
			Subject:           "history",
			Difficulty:        model.DifficultyIntermediate,
			EstimatedDuration: 10,
			Tags:              datatypes.JSONSlice[string]{"historia", "latinoamérica", "política"},
			IsRecommended:     true,
			AverageRating:     4.6,
			Prerequisites:     datatypes.JSONSlice[string]{"Historia mundial básica"},
			LearningObjectives: datatypes.JSONSlice[string]{
				"Comprender los procesos políticos y sociales clave",
				"Analizar consecuencias de los principales eventos",
				"Desarrollar pensamiento crítico sobre fuentes históricas",
			},
			Modules: []model.LearningModule{
				{
					ID:            "history-latin-america-module-1",
					Title:         "Revoluciones y movimientos sociales",
					Description:   "Introducción a las revoluciones en México, Cuba y otros países.",
					Order:         1,
					EstimatedTime: 70,
					Type:          model.ModuleLesson,
					IsRequired:    true,
					Content: datatypes.NewJSONType(model.ModuleContent{
						Kind:        model.ContentText,
						Title:       "Contexto político del siglo XX",
						Description: "Cronologías y mapas interactivos.",
					}),
				},
				{
					ID:            "history-latin-america-module-2",
					Title:         "Dictaduras y transiciones a la democracia",
					Description:   "Análisis de los regímenes autoritarios y sus impactos.",
					Order:         2,
					EstimatedTime: 80,
					Type:          model.ModuleDiscussion,
					IsRequired:    true,
					Content: datatypes.NewJSONType(model.ModuleContent{
						Kind:        model.ContentConversation,
						Title:       "Debates guiados",
						Description: "Preguntas socráticas para analizar causas y consecuencias.",
						Prompts:     []string{"¿Qué factores facilitaron el ascenso de las dictaduras?"},
					}),
				},
				{
					ID:            "history-latin-america-module-3",
					Title:         "Economía y cultura",
					Description:   "Cambios económicos, culturales y sociales en la región.",
					Order:         3,
					EstimatedTime: 60,
					Type:          model.ModuleProject,
					IsRequired:    true,
					Content: datatypes.NewJSONType(model.ModuleContent{
						Kind:        model.ContentInteractive,
						Title:       "Investigación temática",
						Description: "Proyecto final con presentación de hallazgos.",
					}),
				},
			},
		},
	}
}

func DefaultAchievements() []model.Achievement {
	req := func(kind model.RequirementKind, threshold int) datatypes.JSONType[model.AchievementRequirement] {
		return datatypes.NewJSONType(model.AchievementRequirement{Kind: kind, Threshold: threshold})
	}
	return []model.Achievement{
		{ID: "first-session", Name: "Primera sesión", Description: "Completa tu primera sesión de tutoría", Icon: "sparkles", Category: "learning", Rarity: "common", Points: 10, Requirement: req(model.RequirementSessions, 1), IsActive: true},
		{ID: "ten-sessions", Name: "Estudiante constante", Description: "Completa 10 sesiones de tutoría", Icon: "calendar", Category: "learning", Rarity: "uncommon", Points: 50, Requirement: req(model.RequirementSessions, 10), IsActive: true},
		{ID: "hundred-questions", Name: "100 preguntas", Description: "Envía 100 mensajes a tus tutores", Icon: "message-circle", Category: "social", Rarity: "rare", Points: 100, Requirement: req(model.RequirementMessages, 100), IsActive: true},
		{ID: "ten-concepts", Name: "Explorador de conceptos", Description: "Aprende 10 conceptos distintos", Icon: "lightbulb", Category: "mastery", Rarity: "uncommon", Points: 40, Requirement: req(model.RequirementConcepts, 10), IsActive: true},
		{ID: "level-five", Name: "Nivel 5", Description: "Alcanza el nivel 5 en cualquier materia", Icon: "trophy", Category: "mastery", Rarity: "epic", Points: 150, Requirement: req(model.RequirementLevel, 5), IsActive: true},
		{ID: "one-hour", Name: "Una hora de estudio", Description: "Acumula una hora de tutoría", Icon: "clock", Category: "learning", Rarity: "common", Points: 20, Requirement: req(model.RequirementTime, 3600), IsActive: true},
		{ID: "first-module", Name: "Primer módulo", Description: "Completa tu primer módulo de una ruta de aprendizaje", Icon: "flag", Category: "paths", Rarity: "common", Points: 15, Requirement: req(model.RequirementModules, 1), IsActive: true},
	}
}
