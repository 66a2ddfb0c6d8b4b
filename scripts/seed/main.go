package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/vitalog/internal/db"
	"golang.org/x/crypto/bcrypt"
)

// 演示数据生成器：创建两名参与者、三十天的读数历史和一组常用触发规则
func main() {
	var dbPath string
	flag.StringVar(&dbPath, "db", "vitalog.db", "sqlite database path")
	flag.Parse()

	if err := db.Init(dbPath); err != nil {
		log.Fatalf("数据库初始化失败: %v", err)
	}

	var count int64
	db.DB.Model(&db.User{}).Count(&count)
	if count > 0 {
		fmt.Println("参与者已存在，无需初始化")
		return
	}

	users := seedUsers()
	seedMetrics(users[0].ID)
	seedPrompts()

	fmt.Println("演示数据创建成功")
	for _, user := range users {
		fmt.Printf("参与者: %s <%s>\n", user.Name, user.Email)
	}
}

func seedUsers() []db.User {
	hashed, err := bcrypt.GenerateFromPassword([]byte("vitalog-demo"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("密码加密失败: %v", err)
	}

	users := []db.User{
		{Name: "Alex Rivera", Email: "alex@example.com", Password: string(hashed), Status: db.UserStatusActive},
		{Name: "张伟", Email: "zhangwei@example.com", Password: string(hashed), Status: db.UserStatusActive},
	}

	for i := range users {
		if err := db.DB.Create(&users[i]).Error; err != nil {
			log.Fatalf("创建参与者失败: %v", err)
		}
	}

	targets := []db.MacroTarget{
		{UserID: users[0].ID, Calories: 1800, Protein: 120, Carbs: 90},
		{UserID: users[1].ID, Calories: 2000, Protein: 140, Carbs: 110},
	}
	for i := range targets {
		if err := db.DB.Create(&targets[i]).Error; err != nil {
			log.Fatalf("创建营养目标失败: %v", err)
		}
	}

	return users
}

func seedMetrics(userID uint) {
	now := time.Now()

	for i := 29; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)

		glucose := 95.0 + float64(i%4)*8
		entry := db.MetricEntry{
			UserID:     userID,
			MetricType: db.MetricGlucose,
			ValueJSON:  []byte(fmt.Sprintf(`{"value":%.0f}`, glucose)),
			RecordedAt: day,
		}
		if err := db.DB.Create(&entry).Error; err != nil {
			log.Fatalf("创建血糖读数失败: %v", err)
		}

		if i%3 == 0 {
			bp := db.MetricEntry{
				UserID:     userID,
				MetricType: db.MetricBloodPressure,
				ValueJSON:  []byte(fmt.Sprintf(`{"systolic":%d,"diastolic":%d}`, 118+i%5*6, 76+i%4*4)),
				RecordedAt: day,
			}
			if err := db.DB.Create(&bp).Error; err != nil {
				log.Fatalf("创建血压读数失败: %v", err)
			}
		}

		if i%7 == 0 {
			weight := db.MetricEntry{
				UserID:     userID,
				MetricType: db.MetricWeight,
				ValueJSON:  []byte(fmt.Sprintf(`{"value":%.1f}`, 82.5-float64(29-i)*0.05)),
				RecordedAt: day,
			}
			if err := db.DB.Create(&weight).Error; err != nil {
				log.Fatalf("创建体重读数失败: %v", err)
			}
		}

		food := db.FoodLog{
			UserID:      userID,
			LoggedAt:    day,
			Description: "示例餐食",
			Calories:    520,
			Protein:     35,
			Carbs:       40,
		}
		if err := db.DB.Create(&food).Error; err != nil {
			log.Fatalf("创建饮食日志失败: %v", err)
		}
	}
}

func seedPrompts() {
	type promptSeed struct {
		prompt db.Prompt
		rule   db.PromptRule
	}

	seeds := []promptSeed{
		{
			prompt: db.Prompt{
				Key:             "morning-checkin",
				Category:        db.PromptCategoryReminder,
				MessageTemplate: "早上好 {{firstName}}，记得今天记录血糖和饮食。",
				Channel:         db.ChannelInApp,
				Active:          true,
			},
			rule: db.PromptRule{
				Key:           "morning-checkin-8am",
				TriggerType:   db.TriggerSchedule,
				ScheduleJSON:  []byte(`{"hour":8}`),
				CooldownHours: 20,
				Priority:      1,
				Active:        true,
			},
		},
		{
			prompt: db.Prompt{
				Key:             "glucose-3day-high",
				Category:        db.PromptCategoryIntervention,
				MessageTemplate: "{{firstName}}，过去几天血糖偏高（最近 {{glucose.latest}} mg/dL，7 天均值 {{glucose.average}}）。建议回顾碳水摄入，目标 {{target.carbs}}g。",
				Channel:         db.ChannelInApp,
				Active:          true,
			},
			rule: db.PromptRule{
				Key:            "glucose-3day-high-rule",
				TriggerType:    db.TriggerEvent,
				ConditionsJSON: []byte(`{"metricType":"glucose","consecutiveDays":3}`),
				CooldownHours:  72,
				Priority:       10,
				Active:         true,
			},
		},
		{
			prompt: db.Prompt{
				Key:             "bp-elevated",
				Category:        db.PromptCategoryIntervention,
				MessageTemplate: "{{firstName}}，最近一次血压 {{bp.latest}}，请注意休息并按时复测。",
				Channel:         db.ChannelSMS,
				Active:          true,
			},
			rule: db.PromptRule{
				Key:            "bp-elevated-rule",
				TriggerType:    db.TriggerEvent,
				ConditionsJSON: []byte(`{"metricType":"blood_pressure","operator":"gte","value":140,"diastolicValue":90}`),
				CooldownHours:  24,
				Priority:       9,
				Active:         true,
			},
		},
		{
			prompt: db.Prompt{
				Key:             "missed-logging",
				Category:        db.PromptCategoryReminder,
				MessageTemplate: "{{firstName}}，已经 {{daysSinceLog}} 天没有记录了，花一分钟补上今天的数据吧。",
				Channel:         db.ChannelEmail,
				Active:          true,
			},
			rule: db.PromptRule{
				Key:            "missed-logging-3d",
				TriggerType:    db.TriggerMissed,
				ConditionsJSON: []byte(`{"inactiveDays":3}`),
				CooldownHours:  48,
				Priority:       5,
				Active:         true,
			},
		},
	}

	for i := range seeds {
		if err := db.DB.Create(&seeds[i].prompt).Error; err != nil {
			log.Fatalf("创建消息模板失败: %v", err)
		}
		seeds[i].rule.PromptID = seeds[i].prompt.ID
		if err := db.DB.Create(&seeds[i].rule).Error; err != nil {
			log.Fatalf("创建触发规则失败: %v", err)
		}
	}
}
