package service

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/ruleforge/internal/services/mcp/domain"
)

// registerRuleTools registers catalog browsing tools.
func registerRuleTools(server *mcp.Server, client domain.RulesClient) {
	mcp.AddTool(server, domain.ListGamesTool(), domain.ListGamesHandler(client))
	mcp.AddTool(server, domain.ListRulesTool(), domain.ListRulesHandler(client))
	mcp.AddTool(server, domain.GetRuleTool(), domain.GetRuleHandler(client))
}

// registerConfigurationTools registers configuration editing tools.
func registerConfigurationTools(server *mcp.Server, client domain.RulesClient, getContext func() domain.Context, notify domain.ResourceUpdateNotifier) {
	mcp.AddTool(server, domain.ConfigurationCreateTool(), domain.ConfigurationCreateHandler(client, notify))
	mcp.AddTool(server, domain.ConfigurationGetTool(), domain.ConfigurationGetHandler(client, getContext))
	mcp.AddTool(server, domain.RuleEnableTool(), domain.RuleEnableHandler(client, getContext, notify))
	mcp.AddTool(server, domain.RuleDisableTool(), domain.RuleDisableHandler(client, getContext, notify))
	mcp.AddTool(server, domain.RuleParameterSetTool(), domain.RuleParameterSetHandler(client, getContext, notify))
	mcp.AddTool(server, domain.ConfigurationValidateTool(), domain.ConfigurationValidateHandler(client, getContext))
	mcp.AddTool(server, domain.ConfigurationExportTool(), domain.ConfigurationExportHandler(client, getContext))
	mcp.AddTool(server, domain.ConfigurationImportTool(), domain.ConfigurationImportHandler(client, notify))
}

// registerContextTools registers context management tools.
func registerContextTools(server *mcp.Server, client domain.RulesClient, s *Server, notify domain.ResourceUpdateNotifier) {
	mcp.AddTool(server, domain.SetContextTool(), domain.SetContextHandler(client, s.setContext, notify))
}

// registerResources registers readable configuration, catalog, and context resources.
func registerResources(server *mcp.Server, client domain.RulesClient, s *Server) {
	server.AddResourceTemplate(domain.ConfigurationResourceTemplate(), domain.ConfigurationResourceHandler(client))
	server.AddResourceTemplate(domain.RuleCatalogResourceTemplate(), domain.RuleCatalogResourceHandler(client))
	server.AddResource(domain.ContextResource(), domain.ContextResourceHandler(s.getContext))
}

func registerAll(server *mcp.Server, client domain.RulesClient, s *Server, notify domain.ResourceUpdateNotifier) error {
	if server == nil || client == nil {
		return fmt.Errorf("mcp server and rules client are required")
	}
	registerRuleTools(server, client)
	registerConfigurationTools(server, client, s.getContext, notify)
	registerContextTools(server, client, s, notify)
	registerResources(server, client, s)
	return nil
}
