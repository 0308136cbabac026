package brute

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// UserPlaceholder 密码中的用户名占位符
const UserPlaceholder = "%user%"

// DefaultTopUsers 内置 Top 用户名
var DefaultTopUsers = []string{
	"root", "admin", "user", "test", "guest",
	"administrator", "ubuntu", "oracle",
}

// DefaultTopPasswords 内置 Top 弱口令
var DefaultTopPasswords = []string{
	"123456", "password", "12345678", "123456789", "12345",
	"root", "admin", "test", "111111",
	"%user%", "%user%123", "%user%@123", "123%user%",
}

// DictManager 字典管理器
// 不做默认值回填，空列表意味着不测试
type DictManager struct{}

// NewDictManager 创建字典管理器
func NewDictManager() *DictManager {
	return &DictManager{}
}

// Generate 按输入顺序生成凭据列表
// AuthModeUserPass: users × passwords，密码中的 %user% 替换为当前用户名
func (d *DictManager) Generate(users, passwords []string, mode AuthMode) []Auth {
	var list []Auth

	switch mode {
	case AuthModeUserPass:
		for _, u := range users {
			for _, p := range passwords {
				list = append(list, Auth{Username: u, Password: strings.ReplaceAll(p, UserPlaceholder, u)})
			}
		}

	case AuthModeOnlyPass:
		// 没有用户名上下文时占位符替换为 admin
		for _, p := range passwords {
			list = append(list, Auth{Password: strings.ReplaceAll(p, UserPlaceholder, "admin")})
		}

	case AuthModeNone:
		list = append(list, Auth{})
	}

	return list
}

// LoadList 读取字典参数
// 参数指向文件时逐行读取 (忽略空行和 # 注释)，否则按逗号分隔
func LoadList(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}

	if info, err := os.Stat(input); err == nil && !info.IsDir() {
		f, err := os.Open(input)
		if err != nil {
			return nil, fmt.Errorf("open dictionary %s: %w", input, err)
		}
		defer f.Close()

		var list []string
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" && !strings.HasPrefix(line, "#") {
				list = append(list, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read dictionary %s: %w", input, err)
		}
		return list, nil
	}

	var list []string
	for _, part := range strings.Split(input, ",") {
		if part = strings.TrimSpace(part); part != "" {
			list = append(list, part)
		}
	}
	return list, nil
}
